package token

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// AutoRefreshMiddleware authenticates the request from the access-token
// cookie and transparently rotates an expired pair from the refresh cookie.
func (t *Service) AutoRefreshMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return t.autoRefresh(next, "")
}

// AutoRefreshMiddlewareAdmin additionally requires the admin role.
func (t *Service) AutoRefreshMiddlewareAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return t.autoRefresh(next, "admin")
}

func (t *Service) autoRefresh(next echo.HandlerFunc, requiredRole string) echo.HandlerFunc {
	return func(c echo.Context) error {
		asCookie, err := c.Cookie("accessToken")
		if err == nil {
			token, err := jwt.Parse(asCookie.Value, func(j *jwt.Token) (interface{}, error) {
				return t.JWTSecret, nil
			})
			if err == nil && token.Valid {
				claims := token.Claims.(jwt.MapClaims)
				if denied := requireRole(claims, requiredRole); denied != nil {
					return denied
				}
				setUserContext(c, claims)
				return next(c)
			}
			if !errors.Is(err, jwt.ErrTokenExpired) {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}
		}

		rfCookie, err := c.Cookie("refreshToken")
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
		}
		newAccess, newRefresh, err := t.RotateToken(rfCookie.Value)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "cannot rotate token: "+err.Error())
		}

		c.SetCookie(newCookie("accessToken", newAccess, time.Now().Add(accessTTL)))
		c.SetCookie(newCookie("refreshToken", newRefresh, time.Now().Add(refreshTTL)))

		token, err := jwt.Parse(newAccess, func(j *jwt.Token) (interface{}, error) { return t.JWTSecret, nil })
		if err != nil || !token.Valid {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}
		claims := token.Claims.(jwt.MapClaims)
		if denied := requireRole(claims, requiredRole); denied != nil {
			return denied
		}
		setUserContext(c, claims)
		return next(c)
	}
}

func requireRole(claims jwt.MapClaims, required string) error {
	if required == "" {
		return nil
	}
	if role, _ := claims["role"].(string); role != required {
		return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
	}
	return nil
}

func setUserContext(c echo.Context, claims jwt.MapClaims) {
	if sub, ok := claims["sub"].(float64); ok {
		c.Set("userID", uint(sub))
	}
	if role, ok := claims["role"].(string); ok {
		c.Set("role", role)
	}
}

func newCookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}
