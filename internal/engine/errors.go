package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/lumo/internal/graph"
)

// EngineError is an error raised by the engine itself rather than by the
// graph. Graph rejections (a refused connect, an expired reference) are
// returned wrapped and keep their *graph.Error.
type EngineError struct {
	// Code identifies the error category.
	Code EngineErrorCode

	// Message is a human-readable description.
	Message string

	// Seq is the command's logical clock value, 0 if none was assigned.
	Seq int64

	// Command is the journal kind of the command involved, if any.
	Command string

	// Err is the underlying cause, if any.
	Err error
}

// EngineErrorCode categorizes engine errors.
type EngineErrorCode string

const (
	// ErrCodeStopped indicates the engine is no longer accepting work.
	ErrCodeStopped EngineErrorCode = "STOPPED"

	// ErrCodeUnresolved indicates a node or slot id names nothing live.
	ErrCodeUnresolved EngineErrorCode = "UNRESOLVED"

	// ErrCodeNoStore indicates an operation needs a store and none is set.
	ErrCodeNoStore EngineErrorCode = "NO_STORE"

	// ErrCodeInvalidCommand indicates a malformed command.
	ErrCodeInvalidCommand EngineErrorCode = "INVALID_COMMAND"

	// ErrCodeJournal indicates the command ran but could not be persisted.
	ErrCodeJournal EngineErrorCode = "JOURNAL"
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Command != "" {
		msg = fmt.Sprintf("%s (%s seq=%d)", msg, e.Command, e.Seq)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error { return e.Err }

func codeIs(err error, code EngineErrorCode) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// IsStopped returns true if the engine refused work because it stopped.
func IsStopped(err error) bool { return codeIs(err, ErrCodeStopped) }

// IsUnresolved returns true if a command named a node or slot that does
// not exist.
func IsUnresolved(err error) bool { return codeIs(err, ErrCodeUnresolved) }

// IsInvalidCommand returns true if a command was malformed.
func IsInvalidCommand(err error) bool { return codeIs(err, ErrCodeInvalidCommand) }

// IsJournalError returns true if a command could not be journaled.
func IsJournalError(err error) bool { return codeIs(err, ErrCodeJournal) }

// ErrorCode returns a short code for an error returned by Submit: the
// graph's code for graph rejections, the engine's own code, STEPS_EXCEEDED
// for an aborted propagation, or ERROR. A nil error gives "".
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if code := graph.CodeOf(err); code != "" {
		return string(code)
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return string(ee.Code)
	}
	if graph.IsStepsExceededError(err) {
		return "STEPS_EXCEEDED"
	}
	return "ERROR"
}

func errStopped() *EngineError {
	return &EngineError{Code: ErrCodeStopped, Message: "engine stopped"}
}

func unresolvedNode(id int64) *EngineError {
	return &EngineError{Code: ErrCodeUnresolved, Message: fmt.Sprintf("no node %d", id)}
}

func invalid(format string, args ...any) *EngineError {
	return &EngineError{Code: ErrCodeInvalidCommand, Message: fmt.Sprintf(format, args...)}
}
