package repository

import "errors"

// ErrNotFound is returned for ids that were never created or have expired.
var ErrNotFound = errors.New("request not found")
