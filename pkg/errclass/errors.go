package errclass

import "fmt"

// ReviewError is a stable, machine-readable error class.
type ReviewError struct {
	Code    string
	Message string
}

func (e *ReviewError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ReviewError) Is(target error) bool {
	t, ok := target.(*ReviewError)
	return ok && e.Code == t.Code
}

// WithMessage returns a new ReviewError with the same Code but a specific message.
func (e *ReviewError) WithMessage(msg string) *ReviewError {
	return &ReviewError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new ReviewError with a formatted message.
func (e *ReviewError) WithMessagef(format string, args ...any) *ReviewError {
	return &ReviewError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// All stable error classes for v0.x (10 total).
var (
	ErrNotFound             = &ReviewError{Code: "E_NOT_FOUND"}
	ErrAlreadyResolved      = &ReviewError{Code: "E_ALREADY_RESOLVED"}
	ErrConfirmationRequired = &ReviewError{Code: "E_CONFIRM_REQUIRED"}
	ErrIO                   = &ReviewError{Code: "E_IO"}
	ErrNoBackup             = &ReviewError{Code: "E_NO_BACKUP"}
	ErrInvalidProposal      = &ReviewError{Code: "E_INVALID_PROPOSAL"}
	ErrNameInvalid          = &ReviewError{Code: "E_NAME_INVALID"}
	ErrPathUnsafe           = &ReviewError{Code: "E_PATH_UNSAFE"}
	ErrLockConflict         = &ReviewError{Code: "E_LOCK_CONFLICT"}
	ErrAmbiguous            = &ReviewError{Code: "E_AMBIGUOUS"}
)
