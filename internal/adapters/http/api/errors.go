package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/cadhub/internal/adapters/transcribe"
	service "github.com/okian/cadhub/internal/app"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// BadRequestError is an input error detected by the handler itself.
type BadRequestError struct {
	Msg string
}

func (e *BadRequestError) Error() string { return e.Msg }

// Is lets errors.Is(err, ErrBadRequest) match.
func (e *BadRequestError) Is(target error) bool { return target == ErrBadRequest }

func badRequest(format string, args ...any) error {
	return &BadRequestError{Msg: fmt.Sprintf(format, args...)}
}

// statusFor maps a hub error that happened before any request was created.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoGateway), errors.Is(err, transcribe.ErrDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
