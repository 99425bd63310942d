package wx4dec

import (
	stderrors "errors"

	appErr "github.com/sjzar/wx4dec/internal/errors"
)

// Exit code classes. Zero means success; every failure class below
// maps to a distinct non-zero code so scripts can distinguish "wrong
// key" from "bad input" from "I/O trouble" without parsing messages.
const (
	exitOK             = 0
	exitInvalidKey     = 1
	exitCorruptInput   = 2
	exitIOFailure      = 3
	exitUnsupported    = 4
	exitCanceled       = 5
	exitAlreadyDone    = 6
	exitUnknownFailure = 10
)

// exitCode maps an error to a process exit code. A MacMismatch on
// page 1 is treated the same as InvalidKey: both mean the supplied
// key does not open the file, and a caller scripting around exit
// codes should not have to special-case which check caught it.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var app *appErr.AppError
	if stderrors.As(err, &app) && app.Kind == appErr.KindMacMismatch && app.Page == 1 {
		return exitInvalidKey
	}

	switch appErr.Kind(err) {
	case appErr.KindInvalidKey:
		return exitInvalidKey
	case appErr.KindMacMismatch:
		return exitCorruptInput
	case appErr.KindCorruptInput, appErr.KindBadPadding:
		return exitCorruptInput
	case appErr.KindIoFailure:
		return exitIOFailure
	case appErr.KindUnsupportedVersion:
		return exitUnsupported
	case appErr.KindOperationCanceled:
		return exitCanceled
	case appErr.KindAlreadyDecrypted:
		return exitAlreadyDone
	case appErr.KindCryptoFailure:
		return exitUnknownFailure
	default:
		return exitUnknownFailure
	}
}
