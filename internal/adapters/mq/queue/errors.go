package queue

import "errors"

// ErrClosed is returned when closing a queue twice.
var ErrClosed = errors.New("queue closed")
