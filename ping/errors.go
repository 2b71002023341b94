// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package ping

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when using a Session after it has been closed.
var ErrClosed = errors.New("ping session closed")

// EngineError is an error reported by the echo engine of a Session.
type EngineError struct {
	Op      string // operation that failed, such as "add host".
	Message string // engine's error message.
	Err     error  // engine's original error.
}

func newEngineError(op string, err error) *EngineError {
	return &EngineError{Op: op, Message: err.Error(), Err: err}
}

func (e *EngineError) Error() string {
	return e.Op + ": " + e.Message
}

func (e *EngineError) Unwrap() error { return e.Err }

// InvalidInputError reports caller-supplied text that cannot be passed on to
// the echo engine, because it contains a NUL byte.
type InvalidInputError struct {
	Input string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %q: contains NUL byte", e.Input)
}
