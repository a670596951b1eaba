// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// New creates a MooredError for a known code with additional details.
func New(code ErrorCode, details string) *MooredError {
	def, ok := errorDefinitions[code]
	if !ok {
		def.message = "Unknown error"
		def.domain = DomainMisc
		def.httpStatus = http.StatusInternalServerError
	}

	return &MooredError{
		Code:       code,
		Domain:     def.domain,
		Message:    def.message,
		Details:    details,
		HTTPStatus: def.httpStatus,
	}
}

// Wrap converts an arbitrary error into a MooredError with the given code.
// If err is already a MooredError it is returned unchanged so the original
// code and metadata survive layered wrapping.
func Wrap(err error, code ErrorCode) *MooredError {
	if err == nil {
		return nil
	}

	var me *MooredError
	if errors.As(err, &me) {
		return me
	}

	wrapped := New(code, err.Error())
	wrapped.cause = err
	return wrapped
}

// Unwrap exposes the wrapped cause to the errors package.
func (e *MooredError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a contextual key/value pair and returns the error
// for chaining.
func (e *MooredError) WithMetadata(key, value string) *MooredError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

func (e *MooredError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s-%d] %s: %s", e.Domain, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s-%d] %s", e.Domain, e.Code, e.Message)
}

// HasCode reports whether err is a MooredError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	var me *MooredError
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}

// NewCommandError builds an execution error carrying the command line,
// exit code, and captured output as metadata.
func NewCommandError(cmdLine string, exitCode int, output string) *MooredError {
	return New(CommandExecution, output).
		WithMetadata("command", cmdLine).
		WithMetadata("exit_code", fmt.Sprintf("%d", exitCode))
}
