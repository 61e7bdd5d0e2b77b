package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/yuxzhang97/storefront/internal/mykafka"
	"github.com/yuxzhang97/storefront/internal/service/identity"
	"github.com/yuxzhang97/storefront/internal/service/token"
)

type AuthHandler struct {
	Identity *identity.Service
	Tokens   *token.Service
	Producer *mykafka.Producer
}

func (h *AuthHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *AuthHandler) setSessionCookies(c echo.Context, access, refresh string) {
	c.SetCookie(CreateCookie("accessToken", access, "/", time.Now().Add(15*time.Minute)))
	c.SetCookie(CreateCookie("refreshToken", refresh, "/", time.Now().Add(7*24*time.Hour)))
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.Identity.Register(c.Request().Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	payload, err := h.Identity.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrBadCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return httpError(err)
	}

	h.setSessionCookies(c, payload.AccessToken, payload.RefreshToken)
	h.publish(c, map[string]any{
		"type":   "user_logged_in",
		"userID": payload.UserID,
	})
	return c.JSON(http.StatusOK, payload)
}

// GoogleSignIn exchanges a Google OAuth access token for a local session,
// creating the user on first sign-in.
func (h *AuthHandler) GoogleSignIn(c echo.Context) error {
	var req struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	payload, err := h.Identity.SignUpGoogle(c.Request().Context(), req.AccessToken)
	if err != nil {
		return httpError(err)
	}

	h.setSessionCookies(c, payload.AccessToken, payload.RefreshToken)
	h.publish(c, map[string]any{
		"type":   "user_google_sign_in",
		"userID": payload.UserID,
		"new":    payload.Message == identity.MessageSignedUp,
	})
	return c.JSON(http.StatusOK, payload)
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	refreshCookie, err := c.Cookie("refreshToken")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh token missing")
	}

	if err := h.Tokens.RevokeRefresh(refreshCookie.Value); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	expired := time.Now().Add(-1 * time.Hour)
	c.SetCookie(CreateCookie("accessToken", "", "/", expired))
	c.SetCookie(CreateCookie("refreshToken", "", "/", expired))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHandler) Me(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}

	user, err := h.Identity.GetUser(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}
