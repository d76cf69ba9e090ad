package httpgin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/kirinyoku/tix-bus/internal/domain"
)

func statusOf(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindValidation:
		return http.StatusUnprocessableEntity
	case domain.KindConflict, domain.KindState:
		return http.StatusConflict
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// respondErr writes err as a JSON error body. Errors without a kind are
// logged and reported as a generic internal error.
func respondErr(c *gin.Context, err error) {
	e, ok := domain.AsError(err)
	if !ok || e.Kind() == domain.KindStorage {
		_ = c.Error(err)
		slogFrom(c).Error("request failed", slog.String("error", err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "InternalError",
			Kind:    string(domain.KindStorage),
			Message: "internal error",
		})
		return
	}

	c.AbortWithStatusJSON(statusOf(e.Kind()), ErrorResponse{
		Error:   e.Code(),
		Kind:    string(e.Kind()),
		Message: e.Error(),
		Details: e.Details(),
	})
}

// bindErr reports a request body or query that could not be decoded or
// failed its binding rules.
func bindErr(c *gin.Context, err error) {
	resp := ErrorResponse{
		Error:   "BadRequest",
		Kind:    string(domain.KindValidation),
		Message: err.Error(),
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		resp.Details = map[string]any{"fields": fields}
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:   "BadRequest",
		Kind:    string(domain.KindValidation),
		Message: msg,
	})
}

// apiError is a failure raised by the transport itself.
type apiError struct {
	kind    domain.ErrorKind
	code    string
	msg     string
	details map[string]any
}

func (e apiError) Error() string           { return e.msg }
func (e apiError) Kind() domain.ErrorKind  { return e.kind }
func (e apiError) Code() string            { return e.code }
func (e apiError) Details() map[string]any { return e.details }

var (
	errMissingToken = apiError{kind: domain.KindUnauthorized, code: "Unauthorized", msg: "missing bearer token"}
	errForbidden    = apiError{kind: domain.KindForbidden, code: "Forbidden", msg: "insufficient role"}
	errIdemBusy     = apiError{kind: domain.KindConflict, code: "IdempotencyKeyInProgress", msg: "a request with this Idempotency-Key is in progress"}
)

func rateLimited(retryAfterSec int64) error {
	return apiError{
		kind:    domain.KindRateLimited,
		code:    "RateLimited",
		msg:     "too many requests",
		details: map[string]any{"retry_after_sec": retryAfterSec},
	}
}
