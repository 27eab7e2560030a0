package server

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/mailsort/server/internal/classifier/model"
	"github.com/mailsort/server/internal/classifier/session"
	errx "github.com/mailsort/server/internal/core/error"
	logx "github.com/mailsort/server/pkg/logger"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Detail    string      `json:"detail"`
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

type ErrorDetail struct {
	Code     string          `json:"code"`
	Message  string          `json:"message"`
	Attempts []model.Attempt `json:"attempts,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

// ErrorHandler renders errors as ErrorResponse with the status they carry.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		resp := ErrorResponse{RequestID: requestID(c)}
		status := http.StatusInternalServerError

		var appErr *errx.AppError
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &appErr):
			status = appErr.Status
			resp.Error = ErrorDetail{Code: appErr.Code, Message: appErr.Message}
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			resp.Error = ErrorDetail{Code: codeForFiberStatus(fiberErr.Code), Message: fiberErr.Message}
		default:
			resp.Error = ErrorDetail{Code: errx.CodeInternal, Message: errx.SystemErrorMessage}
		}

		var sessErr *session.Error
		if errors.As(err, &sessErr) {
			resp.Error.Attempts = sessErr.Attempts
			resp.Error.Warnings = sessErr.Warnings
		}
		resp.Detail = resp.Error.Message

		if status >= 500 {
			logx.With(resp.RequestID).Error().Err(err).Str("code", resp.Error.Code).Msg("Internal error")
		}
		return c.Status(status).JSON(resp)
	}
}

func codeForFiberStatus(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return errx.CodeUpstreamQuota
	case status >= 400 && status < 500:
		return errx.CodeInvalidInput
	default:
		return errx.CodeInternal
	}
}
