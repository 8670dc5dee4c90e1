// Package httpx renders every API response, success or failure, in the
// {success, message?, ...payload} envelope.
package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// Payload holds the top-level fields merged into an envelope.
type Payload map[string]interface{}

const internalErrorMessage = "internal server error"

// JSON writes a successful envelope.
func JSON(c echo.Context, status int, message string, payload Payload) error {
	body := make(map[string]interface{}, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true
	if message != "" {
		body["message"] = message
	}
	return c.JSON(status, body)
}

// Failure builds the envelope and status for err. Unclassified errors are
// reported with a generic message.
func Failure(err error) (int, map[string]interface{}) {
	body := map[string]interface{}{"success": false}

	var appErr *apperr.Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		for k, v := range appErr.Fields {
			body[k] = v
		}
		body["message"] = appErr.Message
		return apperr.StatusCode(err), body
	case errors.As(err, &httpErr):
		if httpErr.Code >= http.StatusInternalServerError {
			body["message"] = internalErrorMessage
		} else {
			body["message"] = fmt.Sprint(httpErr.Message)
		}
		return httpErr.Code, body
	default:
		body["message"] = internalErrorMessage
		return http.StatusInternalServerError, body
	}
}

// ErrorHandler is installed as echo's HTTPErrorHandler. Server-side failures
// are logged with the request id; the caller only sees the generic message.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := Failure(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().
				Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}
