package domain

import "errors"

var (
	// ErrNotReady is returned when the engine has not finished initialization.
	ErrNotReady = errors.New("engine not ready")

	// ErrInvalidArgument is returned for out-of-range request parameters.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCorruptBundle is returned when persisted bundle files are missing or inconsistent.
	ErrCorruptBundle = errors.New("corrupt bundle")

	// ErrProvider is returned when the embedding provider fails.
	ErrProvider = errors.New("embedding provider error")

	// ErrIO is returned when persistence reads or writes fail.
	ErrIO = errors.New("io error")
)
