package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"retail-order-service/internal/apperror"
	"retail-order-service/internal/repository"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   []string  `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindInsufficientStock, apperror.KindInvalidState, apperror.KindDuplicate:
		return http.StatusConflict
	case apperror.KindBusinessRule:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// HTTPErrorHandler renders errors returned by handlers and middleware.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("method", c.Request().Method).Str("uri", c.Request().RequestURI).Msg("Request failed")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Error writing error response")
	}
}

func errorBody(err error) (int, ErrorResponse) {
	now := time.Now().UTC()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code := "HTTP_ERROR"
		switch he.Code {
		case http.StatusNotFound:
			code = string(apperror.KindNotFound)
		case http.StatusUnauthorized:
			code = "UNAUTHORIZED"
		case http.StatusBadRequest:
			code = string(apperror.KindValidation)
		case http.StatusTooManyRequests:
			code = "RATE_LIMITED"
		}
		return he.Code, ErrorResponse{Code: code, Message: fmt.Sprint(he.Message), Timestamp: now}
	}

	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal(err)
	}
	body := ErrorResponse{
		Code:      string(appErr.Kind),
		Message:   appErr.Message,
		Details:   appErr.Details,
		Timestamp: now,
	}
	if appErr.Kind == apperror.KindInternal {
		body.Message = "An unexpected error occurred"
		body.Details = nil
	}
	return StatusFor(appErr.Kind), body
}

func parseID(c echo.Context, param, resource string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.Validation("Invalid "+resource+" ID", param+": "+c.Param(param))
	}
	return id, nil
}

func parsePage(c echo.Context) (repository.PageRequest, error) {
	p := repository.PageRequest{Page: 0, Size: repository.DefaultPageSize}
	if v := c.QueryParam("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, apperror.Validation("Invalid page parameter", "page: "+v)
		}
		p.Page = n
	}
	if v := c.QueryParam("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, apperror.Validation("Invalid size parameter", "size: "+v)
		}
		p.Size = n
	}
	return p.Normalize(), nil
}

func bind(c echo.Context, dest any) error {
	if err := c.Bind(dest); err != nil {
		detail := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			detail = fmt.Sprint(he.Message)
		}
		return apperror.Validation("Invalid request payload", detail)
	}
	return nil
}
