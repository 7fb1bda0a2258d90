// Package engine implements the block pipeline: pre-block/per-tx/post-
// block dispatch, the process-wide single-writer lock, consensus-hash
// computation, and reorg handling. Grounded on the teacher's
// perp.App.FinalizeBlock (pkg/app/perp/app.go) for the
// decode-dispatch-hash shape, generalized from one ABCI FinalizeBlock
// call into the three-phase pipeline spec.md §4.7 names.
package engine

import "fmt"

// Code is the error taxonomy every tx handler returns on failure,
// spec.md §7.
type Code int

const (
	Malformed Code = iota + 1
	NotPermitted
	NotFound
	InsufficientFunds
	BadParameter
	Conflict
	Fatal
)

func (c Code) String() string {
	switch c {
	case Malformed:
		return "Malformed"
	case NotPermitted:
		return "NotPermitted"
	case NotFound:
		return "NotFound"
	case InsufficientFunds:
		return "InsufficientFunds"
	case BadParameter:
		return "BadParameter"
	case Conflict:
		return "Conflict"
	case Fatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// HandlerError wraps a taxonomy code with a human-readable rule name, so
// the per-tx log line can identify the rule that fired (spec.md §7
// "User-visible behavior").
type HandlerError struct {
	Code Code
	Rule string
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Rule)
}

func errf(code Code, format string, args ...any) *HandlerError {
	return &HandlerError{Code: code, Rule: fmt.Sprintf(format, args...)}
}
