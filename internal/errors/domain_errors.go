package errors

import "fmt"

// Database pipeline (C2) errors.

func InvalidKey(cause error) *AppError {
	return New(KindInvalidKey, "invalid or incorrect decryption key", cause).WithStack()
}

func MacMismatch(page int64) *AppError {
	return (&AppError{Kind: KindMacMismatch, Message: fmt.Sprintf("mac verification failed on page %d", page), Page: page}).WithStack()
}

func CorruptInput(reason string) *AppError {
	return New(KindCorruptInput, reason, nil).WithStack()
}

func CryptoFailure(cause error) *AppError {
	return New(KindCryptoFailure, "cryptographic primitive failed", cause).WithStack()
}

func AlreadyDecrypted() *AppError {
	return New(KindAlreadyDecrypted, "database file is already decrypted", nil).WithStack()
}

func OperationCanceled() *AppError {
	return New(KindOperationCanceled, "operation was canceled", nil).WithStack()
}

// Image codec (C3) errors.

func UnsupportedVersion(sig []byte) *AppError {
	return New(KindUnsupportedVersion, fmt.Sprintf("unrecognized dat signature: % x", sig), nil).WithStack()
}

func HeaderOutOfRange(reason string) *AppError {
	return New(KindCorruptInput, fmt.Sprintf("dat header out of range: %s", reason), nil).WithStack()
}

func BadPadding() *AppError {
	return New(KindBadPadding, "pkcs7 unpadding failed on aes segment", nil).WithStack()
}
