package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ContextKey represents keys for context values
type ContextKey string

const (
	// PrincipalContextKey holds the verified user id
	PrincipalContextKey ContextKey = "principal"

	// DefaultCookieName is the cookie the web client stores its token in
	DefaultCookieName = "token"
)

// RequireAuth is a helper function that creates authentication middleware.
// The token is read from the Authorization Bearer header, falling back to
// the cookie named cookieName.
func RequireAuth(tokenService *TokenService, cookieName string) echo.MiddlewareFunc {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := extractToken(c, cookieName)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not Authenticated!").SetInternal(err)
			}

			userID, err := tokenService.ValidateToken(tokenString)
			if err != nil {
				if errors.Is(err, ErrMissingToken) {
					return echo.NewHTTPError(http.StatusUnauthorized, "Not Authenticated!").SetInternal(err)
				}
				log.Debug().Err(err).Str("path", c.Path()).Msg("Rejected token")
				return echo.NewHTTPError(http.StatusForbidden, "Token is not Valid!").SetInternal(err)
			}

			c.Set(string(PrincipalContextKey), userID)
			return next(c)
		}
	}
}

func extractToken(c echo.Context, cookieName string) (string, error) {
	if authHeader := c.Request().Header.Get("Authorization"); authHeader != "" {
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") || tokenParts[1] == "" {
			return "", ErrMissingToken
		}
		return tokenParts[1], nil
	}

	cookie, err := c.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrMissingToken
	}
	return cookie.Value, nil
}

// GetPrincipal extracts the verified user id from echo context.
// Returns "" when the route is not behind RequireAuth.
func GetPrincipal(c echo.Context) string {
	userID, _ := c.Get(string(PrincipalContextKey)).(string)
	return userID
}
