package issue

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/k1networth/issuetracker-lite/internal/shared/requestid"
)

var (
	ErrMissingID        = errors.New("missing _id")
	ErrInvalidID        = errors.New("invalid _id")
	ErrNotFound         = errors.New("issue not found")
	ErrNoUpdateFields   = errors.New("no update field(s) sent")
	ErrStoreUnavailable = errors.New("document store unavailable")
)

// ValidationError lists every violated field rule of a request.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	RequestID string   `json:"request_id,omitempty"`
	ID        string   `json:"_id,omitempty"`
	Details   []string `json:"details,omitempty"`
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeAPIError(w, status, apiError{
		Code:      code,
		Message:   message,
		RequestID: requestid.Get(r.Context()),
	})
}

func writeAPIError(w http.ResponseWriter, status int, e apiError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiErrorResponse{Error: e})
}

// errorFor maps a service error to its status and code. notFoundMsg lets
// each operation keep its own wording.
func errorFor(err error, notFoundMsg string) (int, apiError) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, apiError{Code: "validation_failed", Message: ve.Error(), Details: ve.Violations}
	case errors.Is(err, ErrMissingID):
		return http.StatusBadRequest, apiError{Code: "missing_id", Message: ErrMissingID.Error()}
	case errors.Is(err, ErrInvalidID):
		return http.StatusBadRequest, apiError{Code: "invalid_id", Message: ErrInvalidID.Error()}
	case errors.Is(err, ErrNoUpdateFields):
		return http.StatusBadRequest, apiError{Code: "no_update_fields", Message: ErrNoUpdateFields.Error()}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, apiError{Code: "not_found", Message: notFoundMsg}
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable, apiError{Code: "store_unavailable", Message: "database error"}
	default:
		return http.StatusInternalServerError, apiError{Code: "internal_error", Message: "internal error"}
	}
}
