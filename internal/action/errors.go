package action

import (
	"errors"
	"fmt"
)

// Code categorizes dispatch errors.
type Code string

const (
	// CodeUnknownModel indicates the task's entity is not registered.
	CodeUnknownModel Code = "UNKNOWN_MODEL"

	// CodeInvalidPayload indicates data or where has the wrong shape for
	// the operation.
	CodeInvalidPayload Code = "INVALID_PAYLOAD"

	// CodeUnknownOperation indicates an operation name outside Ops.
	CodeUnknownOperation Code = "UNKNOWN_OPERATION"

	// CodeStoreFailure indicates the store failed to read or write.
	CodeStoreFailure Code = "STORE_FAILURE"

	// CodeStopped indicates the dispatcher stopped before running the task.
	CodeStopped Code = "STOPPED"
)

// Error is a failed task.
type Error struct {
	Code    Code
	Message string
	Entity  string
	Op      Op
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Entity != "" {
		msg = fmt.Sprintf("%s (entity=%s, op=%s)", msg, e.Entity, e.Op)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsCode reports whether err is, or wraps, an Error with code.
func IsCode(err error, code Code) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

func taskError(t *Task, code Code, err error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Entity:  t.Entity,
		Op:      t.Op,
		Err:     err,
	}
}
