package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	balancedomain "github.com/smallbiznis/xingyu/internal/balance/domain"
	checkindomain "github.com/smallbiznis/xingyu/internal/checkin/domain"
	conversationdomain "github.com/smallbiznis/xingyu/internal/conversation/domain"
	generationdomain "github.com/smallbiznis/xingyu/internal/generation/domain"
	spreaddomain "github.com/smallbiznis/xingyu/internal/spread/domain"
	userdomain "github.com/smallbiznis/xingyu/internal/user/domain"
	"github.com/smallbiznis/xingyu/pkg/db"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if code, field, ok := validationCode(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
			Errors: []ValidationError{
				{
					Field:   field,
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, generationdomain.ErrInsufficientFunds):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_funds",
			Message: "not enough points for this reading",
		}
	case errors.Is(err, checkindomain.ErrAlreadyCheckedIn):
		return http.StatusConflict, errorPayload{
			Type:    "already_checked_in",
			Message: "already checked in today",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: notFoundMessage(err),
		}
	case errors.Is(err, generationdomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, generationdomain.ErrUpstreamUnavailable):
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_unavailable",
			Message: "reading service is unavailable",
		}
	case errors.Is(err, generationdomain.ErrStoreUnavailable),
		errors.Is(err, balancedomain.ErrStoreUnavailable),
		errors.Is(err, checkindomain.ErrStoreUnavailable),
		errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		db.IsTransient(err):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "store_unavailable",
			Message: "service temporarily unavailable, retry later",
		}
	case errors.Is(err, generationdomain.ErrInvalidPricing):
		return http.StatusInternalServerError, errorPayload{
			Type:    "invalid_pricing",
			Message: "spread pricing is misconfigured",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationCode(err error) (code, field string, ok bool) {
	switch {
	case errors.Is(err, generationdomain.ErrInvalidQuestion):
		return "invalid_question", "question", true
	case errors.Is(err, generationdomain.ErrInvalidCards):
		return "invalid_cards", "cards", true
	case errors.Is(err, generationdomain.ErrInvalidRequest),
		errors.Is(err, ErrInvalidRequest):
		return "invalid_request", "request", true
	case errors.Is(err, userdomain.ErrInvalidUID):
		return "invalid_uid", "uid", true
	case errors.Is(err, spreaddomain.ErrInvalidID):
		return "invalid_spread_id", "spreadId", true
	default:
		return "", "", false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, generationdomain.ErrSpreadNotFound),
		errors.Is(err, spreaddomain.ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, balancedomain.ErrUserNotFound),
		errors.Is(err, checkindomain.ErrUserNotFound),
		errors.Is(err, conversationdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, generationdomain.ErrSpreadNotFound), errors.Is(err, spreaddomain.ErrNotFound):
		return "spread not found"
	case errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, balancedomain.ErrUserNotFound),
		errors.Is(err, checkindomain.ErrUserNotFound):
		return "user not found"
	case errors.Is(err, conversationdomain.ErrNotFound):
		return "conversation not found"
	default:
		return "not found"
	}
}

// classifyErrorForLog feeds the request logger's error_type and error_code.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status == http.StatusBadRequest {
		return "validation_error", payload.Type
	}
	return payload.Type, http.StatusText(status)
}
