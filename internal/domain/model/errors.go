package model

import "errors"

// ErrInvalidSchema marks a parameter list that cannot become the schema.
var ErrInvalidSchema = errors.New("invalid parameter schema")
