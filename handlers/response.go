package handlers

import (
	"errors"
	"net/http"

	"compliance_flow_app_go/middleware"
	"compliance_flow_app_go/services"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Response is the envelope of every API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondData(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Response{Success: true, Data: data})
}

func respondMessage(c echo.Context, status int, message string) error {
	return c.JSON(status, Response{Success: true, Message: message})
}

// respondError maps a service error to its status. Internal causes are
// logged and replaced by a generic message.
func respondError(c echo.Context, err error) error {
	status := services.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		event := log.Error().Err(err).Str("method", c.Request().Method).Str("path", c.Path())
		if caller := middleware.GetCaller(c); caller != nil {
			event = event.Str("actor_id", caller.UserID)
		}
		event.Msg("Request failed")
	}
	return c.JSON(status, Response{Success: false, Error: services.PublicMessage(err)})
}

// ErrorHandler renders errors returned by middleware and the router in the
// response envelope.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "An unexpected error occurred"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(status)
		}
	} else {
		log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("Unhandled error")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, Response{Success: false, Error: message})
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to write error response")
	}
}
