package transport

import (
	"errors"
	"fmt"
)

// Sentinel errors for delivery.
var (
	ErrDelivery   = errors.New("delivery to CAD failed")
	ErrNoListener = errors.New("no CAD connection and no listener URL configured")
)

// DeliveryError names the transport and the underlying cause.
type DeliveryError struct {
	Transport  string
	StatusCode int
	Cause      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s via %s: %v", ErrDelivery.Error(), e.Transport, e.Cause)
}

func (e *DeliveryError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrDelivery) match.
func (e *DeliveryError) Is(target error) bool { return target == ErrDelivery }
