package plan

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPlan = errors.New("invalid plan")
	ErrCycle       = errors.New("dependency cycle")
)

// Error wraps plan validation failures.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &Error{Kind: ErrInvalidPlan, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(path []string) error {
	return &Error{Kind: ErrCycle, Msg: strings.Join(path, " -> ")}
}
