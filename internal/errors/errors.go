package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Error kinds, per the decrypt core's error taxonomy. These are not
// Go types but values of AppError.Kind, so callers can switch on them
// without type assertions.
const (
	KindInvalidKey         = "invalid_key"
	KindMacMismatch        = "mac_mismatch"
	KindCorruptInput       = "corrupt_input"
	KindCryptoFailure      = "crypto_failure"
	KindIoFailure          = "io_failure"
	KindUnsupportedVersion = "unsupported_version"
	KindBadPadding         = "bad_padding"
	KindAlreadyDecrypted   = "already_decrypted"
	KindOperationCanceled  = "operation_canceled"
)

// AppError is the error shape used across the decrypt core: a typed
// kind, a human message, an optional wrapped cause, and an optional
// page index for MAC failures.
type AppError struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Cause   error    `json:"-"`
	Page    int64    `json:"page,omitempty"`
	Stack   []string `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithStack captures the current call stack for diagnostics. Never
// includes the master key, derived subkeys, IVs, or plaintext — only
// file/line/function names.
func (e *AppError) WithStack() *AppError {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	e.Stack = stack
	return e
}

func New(kind, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err carries the given error kind.
func Is(err error, kind string) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// Kind returns the error kind, "" if err is nil, or "unknown" if err
// is not an AppError.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return "unknown"
}

// RootCause walks the Unwrap chain to the error with no further cause.
func RootCause(err error) error {
	for err != nil {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err
		}
		err = unwrapped
	}
	return err
}
