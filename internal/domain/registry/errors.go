package registry

import "errors"

// ErrUnknownClient is returned when an operation names an unregistered id.
var ErrUnknownClient = errors.New("unknown client")
