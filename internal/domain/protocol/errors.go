package protocol

import "errors"

// Sentinel errors for inbound decoding.
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownEvent   = errors.New("unknown event")
)
