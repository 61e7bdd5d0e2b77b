package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yuxzhang97/storefront/internal/googleauth"
	"github.com/yuxzhang97/storefront/internal/models"
	"github.com/yuxzhang97/storefront/internal/mykafka"
	"github.com/yuxzhang97/storefront/internal/service/identity"
	"github.com/yuxzhang97/storefront/internal/service/token"
)

func newAuthEnv(t *testing.T, userInfoURL string) (*echo.Echo, *AuthHandler, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RefreshToken{}))

	tokens := &token.Service{
		DB:            db,
		JWTSecret:     []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
	h := &AuthHandler{
		Identity: identity.NewService(db, googleauth.NewClient(userInfoURL, 2*time.Second), tokens),
		Tokens:   tokens,
		Producer: &mykafka.Producer{},
	}
	return echo.New(), h, db
}

func jsonRequest(t *testing.T, e *echo.Echo, method, path string, body any) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, e.NewContext(req, rec)
}

func TestGoogleSignInHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(googleauth.Profile{
			Email:      "shopper@example.com",
			GivenName:  "Ada",
			FamilyName: "Lovelace",
		})
	}))
	t.Cleanup(srv.Close)

	e, h, db := newAuthEnv(t, srv.URL)

	rec, c := jsonRequest(t, e, http.MethodPost, "/api/v1/auth/google", map[string]string{"access_token": "provider-token"})
	require.NoError(t, h.GoogleSignIn(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var payload identity.AuthPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.NotZero(t, payload.UserID)
	require.Equal(t, identity.MessageSignedUp, payload.Message)
	require.NotEmpty(t, payload.AccessToken)
	require.NotEmpty(t, payload.RefreshToken)

	cookies := rec.Result().Cookies()
	names := make(map[string]bool, len(cookies))
	for _, ck := range cookies {
		names[ck.Name] = true
	}
	require.True(t, names["accessToken"])
	require.True(t, names["refreshToken"])

	var user models.User
	require.NoError(t, db.First(&user, payload.UserID).Error)
	require.Equal(t, "shopper@example.com", user.Email)

	// Repeat sign-in resolves to the same user.
	rec2, c2 := jsonRequest(t, e, http.MethodPost, "/api/v1/auth/google", map[string]string{"access_token": "provider-token"})
	require.NoError(t, h.GoogleSignIn(c2))
	var second identity.AuthPayload
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &second))
	require.Equal(t, payload.UserID, second.UserID)
	require.Equal(t, identity.MessageSignedIn, second.Message)
}

func TestGoogleSignInHandlerProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	e, h, _ := newAuthEnv(t, srv.URL)

	_, c := jsonRequest(t, e, http.MethodPost, "/api/v1/auth/google", map[string]string{"access_token": "provider-token"})
	err := h.GoogleSignIn(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusInternalServerError, he.Code)
}

func TestRegisterLoginLogout(t *testing.T) {
	e, h, _ := newAuthEnv(t, "http://127.0.0.1:0")

	rec, c := jsonRequest(t, e, http.MethodPost, "/api/v1/register", map[string]string{
		"email":      "buyer@example.com",
		"password":   "password",
		"first_name": "Bob",
		"last_name":  "Buyer",
	})
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	require.Equal(t, "buyer@example.com", user.Email)
	require.NotZero(t, user.ID)

	// Duplicate registration is rejected.
	_, cDup := jsonRequest(t, e, http.MethodPost, "/api/v1/register", map[string]string{
		"email":    "buyer@example.com",
		"password": "password",
	})
	err := h.Register(cDup)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusConflict, he.Code)

	recLogin, cLogin := jsonRequest(t, e, http.MethodPost, "/api/v1/login", map[string]string{
		"email":    "buyer@example.com",
		"password": "password",
	})
	require.NoError(t, h.Login(cLogin))
	require.Equal(t, http.StatusOK, recLogin.Code)

	var payload identity.AuthPayload
	require.NoError(t, json.Unmarshal(recLogin.Body.Bytes(), &payload))
	require.Equal(t, user.ID, payload.UserID)

	_, cBad := jsonRequest(t, e, http.MethodPost, "/api/v1/login", map[string]string{
		"email":    "buyer@example.com",
		"password": "wrong",
	})
	err = h.Login(cBad)
	he, ok = err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusUnauthorized, he.Code)

	recOut := httptest.NewRecorder()
	reqOut := httptest.NewRequest(http.MethodPost, "/api/v1/logout", nil)
	reqOut.AddCookie(&http.Cookie{Name: "refreshToken", Value: payload.RefreshToken})
	cOut := e.NewContext(reqOut, recOut)
	require.NoError(t, h.LogOut(cOut))
	require.Equal(t, http.StatusOK, recOut.Code)

	var out map[string]string
	require.NoError(t, json.Unmarshal(recOut.Body.Bytes(), &out))
	require.Equal(t, "logged out", out["message"])
}
