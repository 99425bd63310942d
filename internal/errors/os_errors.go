package errors

import "fmt"

func OpenFileFailed(path string, cause error) *AppError {
	return New(KindIoFailure, fmt.Sprintf("failed to open file: %s", path), cause).WithStack()
}

func StatFileFailed(path string, cause error) *AppError {
	return New(KindIoFailure, fmt.Sprintf("failed to stat file: %s", path), cause).WithStack()
}

func ReadFileFailed(path string, cause error) *AppError {
	return New(KindIoFailure, fmt.Sprintf("failed to read file: %s", path), cause).WithStack()
}

func IncompleteRead(cause error) *AppError {
	return New(KindIoFailure, "incomplete read", cause).WithStack()
}

func WriteOutputFailed(cause error) *AppError {
	return New(KindIoFailure, "failed to write output", cause).WithStack()
}

func CreateFileFailed(path string, cause error) *AppError {
	return New(KindIoFailure, fmt.Sprintf("failed to create file: %s", path), cause).WithStack()
}

func RenameFileFailed(path string, cause error) *AppError {
	return New(KindIoFailure, fmt.Sprintf("failed to rename file into place: %s", path), cause).WithStack()
}

func MkdirFailed(path string, cause error) *AppError {
	return New(KindIoFailure, fmt.Sprintf("failed to create directory: %s", path), cause).WithStack()
}

func WalkFailed(cause error) *AppError {
	return New(KindIoFailure, "failed to walk directory tree", cause).WithStack()
}
