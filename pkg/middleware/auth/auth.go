package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/pkg/authclient"
	"github.com/Skotchmaster/bookstore/pkg/tokens"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"

	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

type Refresher interface {
	RefreshTokens(ctx context.Context, refreshToken, accessToken string) (*authclient.RefreshResponse, error)
}

// AutoRefreshMiddleware verifies the access token issued by the auth service.
// An expired cookie token is exchanged for a new pair when a refresh cookie is
// present and a Refresher is configured.
type AutoRefreshMiddleware struct {
	JWTSecret  []byte
	AuthClient Refresher
}

func NewAutoRefreshMiddleware(secret []byte, authClient Refresher) *AutoRefreshMiddleware {
	return &AutoRefreshMiddleware{
		JWTSecret:  secret,
		AuthClient: authClient,
	}
}

type ValidatorFunc func(claims *tokens.AccessClaims) error

func (m *AutoRefreshMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *AutoRefreshMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, func(claims *tokens.AccessClaims) error {
		if !claims.IsAdmin() {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return nil
	})
}

// VerifyToken returns the verified claims for a raw access token.
func (m *AutoRefreshMiddleware) VerifyToken(raw string) (*tokens.AccessClaims, error) {
	return tokens.AccessClaimsFromToken(raw, m.JWTSecret)
}

func (m *AutoRefreshMiddleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if raw, ok := bearerToken(c); ok {
			claims, err := m.VerifyToken(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}
			return m.proceed(c, next, validator, claims)
		}

		accessCookie, err := c.Cookie(accessCookieName)
		if err != nil || accessCookie.Value == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := m.VerifyToken(accessCookie.Value)
		if err == nil {
			return m.proceed(c, next, validator, claims)
		}

		if !errors.Is(err, jwt.ErrTokenExpired) || m.AuthClient == nil {
			clearAuthCookies(c)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		refreshCookie, rErr := c.Cookie(refreshCookieName)
		if rErr != nil || refreshCookie.Value == "" {
			clearAuthCookies(c)
			return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
		}

		refreshResp, refErr := m.AuthClient.RefreshTokens(c.Request().Context(), refreshCookie.Value, accessCookie.Value)
		if errors.Is(refErr, authclient.ErrRejected) {
			clearAuthCookies(c)
			return echo.NewHTTPError(http.StatusUnauthorized, "refresh failed")
		}
		if refErr != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "auth service unavailable").SetInternal(refErr)
		}

		newClaims, pErr := m.VerifyToken(refreshResp.AccessToken)
		if pErr != nil {
			clearAuthCookies(c)
			return echo.NewHTTPError(http.StatusUnauthorized, "new access token invalid")
		}

		c.SetCookie(CreateCookie(accessCookieName, refreshResp.AccessToken, "/", time.Unix(refreshResp.AccessExp, 0)))
		c.SetCookie(CreateCookie(refreshCookieName, refreshResp.RefreshToken, "/", time.Unix(refreshResp.RefreshExp, 0)))

		return m.proceed(c, next, validator, newClaims)
	}
}

func (m *AutoRefreshMiddleware) proceed(c echo.Context, next echo.HandlerFunc, validator ValidatorFunc, claims *tokens.AccessClaims) error {
	if validator != nil {
		if err := validator(claims); err != nil {
			return err
		}
	}
	setUserContext(c, claims)
	return next(c)
}

func bearerToken(c echo.Context) (string, bool) {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if h == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

func clearAuthCookies(c echo.Context) {
	c.SetCookie(DeleteCookie(accessCookieName, "/"))
	c.SetCookie(DeleteCookie(refreshCookieName, "/"))
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims) {
	c.Set(CtxUserID, claims.Subject)
	c.Set(CtxRole, claims.Role)
}

// UserID returns the verified subject set by RequireAuth/RequireAdmin.
func UserID(c echo.Context) (string, bool) {
	s, ok := c.Get(CtxUserID).(string)
	return s, ok && s != ""
}

func IsAdmin(c echo.Context) bool {
	role, _ := c.Get(CtxRole).(string)
	return role == tokens.RoleAdmin
}
