package service

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Hub operations.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNoGateway     = errors.New("completion backend not configured")
	ErrUnknownClient = errors.New("unknown connection")
	ErrBusy          = errors.New("server busy, try again shortly")
)

// ValidationError rejects input before any request is created.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
