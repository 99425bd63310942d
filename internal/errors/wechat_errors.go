package errors

func DecodeKeyFailed(cause error) *AppError {
	return New(KindInvalidKey, "failed to decode hex key", cause).WithStack()
}

func CreateCipherFailed(cause error) *AppError {
	return New(KindCryptoFailure, "failed to create cipher", cause).WithStack()
}
