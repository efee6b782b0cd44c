package hand

import (
	"errors"
	"fmt"
)

// ErrDuplicate signals that a hand's identity tuple is already persisted.
// It is expected, counted, and never logged as an error.
var ErrDuplicate = errors.New("hand already imported")

// ErrPartial signals a truncated or in-progress hand that must be skipped,
// counted separately from errors.
var ErrPartial = errors.New("partial hand")

// ParseError is fatal to the one file or hand being parsed and never
// propagates to other files.
type ParseError struct {
	Path    string
	Line    int
	Msg     string
	Snippet string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("parse %s: %s", e.Path, e.Msg)
}
