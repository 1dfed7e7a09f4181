package middleware

import (
	"net/http"
	"strings"

	"compliance_flow_app_go/services"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	// ContextKeyCaller is the context key for the resolved caller
	ContextKeyCaller = "caller"
)

// RequireCaller verifies the bearer token and resolves the caller with its
// current roles from the database on every request.
func RequireCaller(database *gorm.DB, secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing bearer token")
			}

			userID, err := services.ParseCallerToken(secret, strings.TrimSpace(raw))
			if err != nil {
				log.Debug().Err(err).Str("ip", c.RealIP()).Msg("Rejected bearer token")
				if services.Monitor != nil {
					services.Monitor.TrackFailedAuth(c.RealIP())
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			caller, err := services.ResolveCaller(database.WithContext(c.Request().Context()), userID)
			if err != nil {
				switch services.KindOf(err) {
				case services.ErrKindNotFound, services.ErrKindForbidden:
					return echo.NewHTTPError(http.StatusUnauthorized, "Unknown or inactive user")
				default:
					log.Error().Err(err).Str("user_id", userID).Msg("Failed to resolve caller")
					return echo.NewHTTPError(http.StatusInternalServerError, "Failed to resolve caller")
				}
			}

			c.Set(ContextKeyCaller, caller)
			return next(c)
		}
	}
}

// RequireCapability rejects callers that do not hold capability
func RequireCapability(capability string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !GetCaller(c).HasCapability(capability) {
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
			}
			return next(c)
		}
	}
}

// GetCaller retrieves the resolved caller from context
func GetCaller(c echo.Context) *services.Caller {
	caller, ok := c.Get(ContextKeyCaller).(*services.Caller)
	if !ok {
		return nil
	}
	return caller
}
