package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// Sentinels every error leaving a package is marked with. The mark decides the
// HTTP status and how the reconciler classifies a failure.
var (
	ErrNotFound      = new(ErrCodeNotFound, "resource not found", http.StatusNotFound)
	ErrAlreadyExists = new(ErrCodeAlreadyExists, "resource already exists", http.StatusConflict)
	ErrValidation    = new(ErrCodeValidation, "validation error", http.StatusBadRequest)
	ErrSignature     = new(ErrCodeSignature, "invalid signature", http.StatusBadRequest)
	ErrUnauthorized  = new(ErrCodeUnauthorized, "unauthorized", http.StatusUnauthorized)
	ErrProvider      = new(ErrCodeProvider, "billing provider error", http.StatusBadGateway)
	ErrDatabase      = new(ErrCodeDatabase, "database error", http.StatusInternalServerError)
	ErrSystem        = new(ErrCodeSystemError, "system error", http.StatusInternalServerError)
)

const (
	ErrCodeNotFound      = "not_found"
	ErrCodeAlreadyExists = "already_exists"
	ErrCodeValidation    = "validation_error"
	ErrCodeSignature     = "signature_invalid"
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeProvider      = "provider_error"
	ErrCodeDatabase      = "database_error"
	ErrCodeSystemError   = "system_error"
)

// statusPrecedence is the order sentinels are matched in when an error carries
// more than one mark. Caller mistakes win over upstream failures.
var statusPrecedence = []*InternalError{
	ErrSignature,
	ErrUnauthorized,
	ErrValidation,
	ErrNotFound,
	ErrAlreadyExists,
	ErrProvider,
	ErrDatabase,
	ErrSystem,
}

const detailsPrefix = "__json__:"

// InternalError is a sentinel: a machine-readable code and the HTTP status it maps to
type InternalError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func new(code, message string, status int) *InternalError {
	return &InternalError{Code: code, Message: message, Status: status}
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

func (e *InternalError) Is(target error) bool {
	t, ok := target.(*InternalError)
	if !ok {
		return e.Err != nil && errors.Is(e.Err, target)
	}
	return e.Code == t.Code
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }
func IsValidation(err error) bool    { return errors.Is(err, ErrValidation) }
func IsSignature(err error) bool     { return errors.Is(err, ErrSignature) }
func IsUnauthorized(err error) bool  { return errors.Is(err, ErrUnauthorized) }
func IsProvider(err error) bool      { return errors.Is(err, ErrProvider) }
func IsDatabase(err error) bool      { return errors.Is(err, ErrDatabase) }

// HTTPStatusFromErr returns the status of the most specific sentinel err is marked with
func HTTPStatusFromErr(err error) int {
	for _, sentinel := range statusPrecedence {
		if errors.Is(err, sentinel) {
			return sentinel.Status
		}
	}
	return http.StatusInternalServerError
}

// DisplayMessage returns the outermost hint attached to err
func DisplayMessage(err error) string {
	for _, hint := range errors.GetAllHints(err) {
		if hint = strings.TrimSpace(hint); hint != "" {
			return hint
		}
	}
	return "An unexpected error occurred"
}

// ReportableDetails merges every detail map attached with WithReportableDetails
func ReportableDetails(err error) map[string]any {
	details := make(map[string]any)
	for _, safe := range errors.GetAllSafeDetails(err) {
		for _, payload := range safe.SafeDetails {
			encoded, ok := strings.CutPrefix(payload, detailsPrefix)
			if !ok {
				continue
			}
			var m map[string]any
			if json.Unmarshal([]byte(encoded), &m) != nil {
				continue
			}
			for k, v := range m {
				details[k] = v
			}
		}
	}
	return details
}
