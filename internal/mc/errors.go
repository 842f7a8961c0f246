package mc

import (
	"fmt"

	"github.com/pkg/errors"
)

// Classified error kinds. Every error returned by a component unwraps to
// exactly one of these.
var (
	ErrNoMemory        = errors.New("no memory")
	ErrInvalidParam    = errors.New("invalid parameter")
	ErrNotSupported    = errors.New("not supported")
	ErrOperationFailed = errors.New("operation failed")
)

// Phase names the stage of a multi-step native operation that failed.
type Phase string

const (
	PhaseLaunch Phase = "launch"
	PhaseSync   Phase = "sync"
)

// Error is a classified component failure. Code and Native describe the
// backend status that caused it, when there was one.
type Error struct {
	Op     string
	Phase  Phase
	Kind   error
	Code   int
	Native string
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Phase != "" {
		msg += " (" + string(e.Phase) + ")"
	}
	msg += ": " + e.Kind.Error()
	if e.Native != "" {
		msg += fmt.Sprintf(": native error %d(%s)", e.Code, e.Native)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Kind }

// KindOf returns the classified kind of err, or nil if err is not one.
func KindOf(err error) error {
	for _, kind := range []error{ErrNoMemory, ErrInvalidParam, ErrNotSupported, ErrOperationFailed} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// KindName is a short label for err's kind, suitable for metric labels.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrNoMemory:
		return "no_memory"
	case ErrInvalidParam:
		return "invalid_param"
	case ErrNotSupported:
		return "not_supported"
	case ErrOperationFailed:
		return "operation_failed"
	}
	return "unknown"
}
