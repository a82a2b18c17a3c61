package normalize

import (
	"errors"
	"fmt"
)

// ErrParse is the sentinel matched by every *ParseError.
var ErrParse = errors.New("completion output is not a parameter object")

// ParseError reports text no extraction attempt could decode.
type ParseError struct {
	Text string
}

func (e *ParseError) Error() string {
	const limit = 120
	t := e.Text
	if len(t) > limit {
		t = t[:limit] + "..."
	}
	return fmt.Sprintf("%s: %q", ErrParse.Error(), t)
}

// Is lets errors.Is(err, ErrParse) match.
func (e *ParseError) Is(target error) bool { return target == ErrParse }
