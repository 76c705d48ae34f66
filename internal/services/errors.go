package services

import "errors"

// File-level failures. Everything else degrades into the result data.
var (
	ErrUnsupportedInput     = errors.New("unsupported input")
	ErrResourceExceeded     = errors.New("resource limit exceeded")
	ErrNotFound             = errors.New("log file not found")
	ErrUnsupportedExtension = errors.New("unsupported file extension")
)
