package llm

import (
	"errors"
	"fmt"
)

// Sentinel errors for completion calls.
var (
	ErrGateway         = errors.New("completion backend failed")
	ErrEmptyCompletion = errors.New("response has no completion content")
)

// GatewayError wraps any failure of a completion call.
type GatewayError struct {
	Cause      error
	StatusCode int
	Timeout    bool
}

func (e *GatewayError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: timed out: %v", ErrGateway.Error(), e.Cause)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %v", ErrGateway.Error(), e.StatusCode, e.Cause)
	default:
		return fmt.Sprintf("%s: %v", ErrGateway.Error(), e.Cause)
	}
}

func (e *GatewayError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrGateway) match.
func (e *GatewayError) Is(target error) bool { return target == ErrGateway }
