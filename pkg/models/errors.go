package models

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error codes rendered in API responses
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInvalidState       = "INVALID_STATE"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Error kinds. Every AppError unwraps to exactly one of these, so callers can
// branch with errors.Is without knowing the specific failure.
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidState          = errors.New("invalid state")
	ErrInvalidInput          = errors.New("invalid input")
	ErrScheduleUnsatisfiable = errors.New("schedule unsatisfiable")
	ErrExternalUnavailable   = errors.New("external service unavailable")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrConflict              = errors.New("conflict")
)

// Domain errors
var (
	ErrPlanNotFound   = newAppError("PLAN_NOT_FOUND", "plan not found", ErrNotFound)
	ErrBookNotFound   = newAppError("BOOK_NOT_FOUND", "book not found", ErrNotFound)
	ErrBadgeNotFound  = newAppError("BADGE_NOT_FOUND", "badge not found", ErrNotFound)
	ErrUserNotFound   = newAppError("USER_NOT_FOUND", "user not found", ErrNotFound)
	ErrNoRunningTimer = newAppError("NO_RUNNING_TIMER", "no running timer", ErrNotFound)
	ErrLogNotFound    = newAppError("READING_LOG_NOT_FOUND", "reading log not found", ErrNotFound)

	ErrInvalidPlanStatus    = newAppError("INVALID_PLAN_STATUS", "operation not allowed in the current plan status", ErrInvalidState)
	ErrInvalidPlanExtension = newAppError("INVALID_PLAN_EXTENSION", "free plans cannot be extended", ErrInvalidState)
	ErrTimerAlreadyRunning  = newAppError("TIMER_ALREADY_RUNNING", "a timer is already running", ErrInvalidState)
	ErrPlanAlreadyCompleted = newAppError("PLAN_ALREADY_COMPLETED", "plan is already completed", ErrInvalidState)
	ErrPageDecreased        = newAppError("PAGE_DECREASED", "current page cannot go backwards", ErrInvalidState)
	ErrPageExceedsTotal     = newAppError("PAGE_EXCEEDS_TOTAL", "current page exceeds the book's total pages", ErrInvalidState)

	ErrScheduleParamsRequired = newAppError("SCHEDULE_PARAMS_REQUIRED", "start date and period are required for a scheduled plan", ErrInvalidInput)
	ErrInvalidWeekday         = newAppError("INVALID_WEEKDAY", "weekday must be between 0 (Sunday) and 6 (Saturday)", ErrInvalidInput)
	ErrFieldRequired          = newAppError("FIELD_REQUIRED", "required field is missing", ErrInvalidInput)
	ErrInvalidContentType     = newAppError("INVALID_CONTENT_TYPE", "content type must be REVIEW or SCRAP", ErrInvalidInput)
	ErrInvalidSortType        = newAppError("INVALID_SORT_TYPE", "sort must be one of time, count, badge", ErrInvalidInput)
	ErrInvalidScopeType       = newAppError("INVALID_SCOPE_TYPE", "scope must be one of month, year", ErrInvalidInput)
	ErrInvalidStatsScope      = newAppError("INVALID_STATS_SCOPE", "scope must be one of day, week, month", ErrInvalidInput)

	ErrUnsatisfiableSchedule = newAppError("SCHEDULE_UNSATISFIABLE", "no schedule fits the given exclusions", ErrScheduleUnsatisfiable)
	ErrCatalogUnavailable    = newAppError("CATALOG_UNAVAILABLE", "book catalog is unavailable", ErrExternalUnavailable)

	ErrPlanNotOwned = newAppError("PLAN_NOT_OWNED", "plan belongs to another user", ErrForbidden)
	ErrInvalidToken = newAppError("INVALID_TOKEN", "invalid or expired token", ErrUnauthorized)
)

// AppError is a classified failure carrying its transport mappings.
type AppError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"status_code,omitempty"`
	GRPCCode   codes.Code             `json:"grpc_code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`

	kind  error
	cause error
}

func newAppError(code, message string, kind error) *AppError {
	statusCode, grpcCode := mappingsFor(kind)
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		GRPCCode:   grpcCode,
		kind:       kind,
	}
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes both the kind and the underlying cause.
func (e *AppError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

// Is matches any AppError with the same code, so copies made by Wrap and
// WithDetail still compare equal to the package-level value.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Kind returns the error kind sentinel.
func (e *AppError) Kind() error {
	return e.kind
}

// Wrap returns a copy of e that records cause.
func (e *AppError) Wrap(cause error) *AppError {
	cp := *e
	cp.cause = cause
	return &cp
}

// WithDetail returns a copy of e with an extra detail field.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// ToHTTPError converts to the API error envelope
func (e *AppError) ToHTTPError() *APIResponse {
	return NewErrorResponse(e.Code, e.Message)
}

// ToGRPCError converts to gRPC status error
func (e *AppError) ToGRPCError() error {
	return status.Error(e.GRPCCode, e.Message)
}

// ToWebSocketError returns WebSocket close code and message
func (e *AppError) ToWebSocketError() (int, string) {
	switch {
	case errors.Is(e.kind, ErrUnauthorized), errors.Is(e.kind, ErrForbidden):
		return websocket.ClosePolicyViolation, e.Message
	case errors.Is(e.kind, ErrNotFound):
		return websocket.CloseNormalClosure, e.Message
	default:
		return websocket.CloseInternalServerErr, e.Message
	}
}

// AsAppError classifies any error. Unclassified errors become internal
// errors that keep the original as cause.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	for _, kind := range []error{
		ErrNotFound, ErrInvalidState, ErrInvalidInput, ErrScheduleUnsatisfiable,
		ErrExternalUnavailable, ErrUnauthorized, ErrForbidden, ErrConflict,
	} {
		if errors.Is(err, kind) {
			return newAppError(codeFor(kind), err.Error(), kind)
		}
	}

	internal := newAppError(ErrCodeInternal, "internal server error", errors.New("internal"))
	internal.cause = err
	return internal
}

func mappingsFor(kind error) (int, codes.Code) {
	switch kind {
	case ErrNotFound:
		return http.StatusNotFound, codes.NotFound
	case ErrInvalidState:
		return http.StatusConflict, codes.FailedPrecondition
	case ErrInvalidInput, ErrScheduleUnsatisfiable:
		return http.StatusBadRequest, codes.InvalidArgument
	case ErrExternalUnavailable:
		return http.StatusServiceUnavailable, codes.Unavailable
	case ErrUnauthorized:
		return http.StatusUnauthorized, codes.Unauthenticated
	case ErrForbidden:
		return http.StatusForbidden, codes.PermissionDenied
	case ErrConflict:
		return http.StatusConflict, codes.AlreadyExists
	default:
		return http.StatusInternalServerError, codes.Internal
	}
}

func codeFor(kind error) string {
	switch kind {
	case ErrNotFound:
		return ErrCodeNotFound
	case ErrInvalidState:
		return ErrCodeInvalidState
	case ErrInvalidInput, ErrScheduleUnsatisfiable:
		return ErrCodeValidation
	case ErrExternalUnavailable:
		return ErrCodeServiceUnavailable
	case ErrUnauthorized:
		return ErrCodeUnauthorized
	case ErrForbidden:
		return ErrCodeForbidden
	case ErrConflict:
		return ErrCodeConflict
	default:
		return ErrCodeInternal
	}
}
