// Package xerr defines the closed taxonomy of service failures that C7
// translates to HTTP status codes exactly once, at the boundary (spec §7).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package xerr

import (
	"fmt"

	"github.com/pkg/errors"
)

type Code int

const (
	Validation Code = iota
	Authorization
	Unauthenticated
	NotFound
	Conflict
	Overflow
	RangeUnsatisfiable
	Internal
)

// Failure is the only error type services hand back to C7; it is never
// a Go panic/exception and never leaks past the HTTP boundary translation.
type Failure struct {
	Code Code
	Hint string
	Err  error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Hint, f.Err)
	}
	return f.Hint
}

func (f *Failure) Unwrap() error { return f.Err }

func New(code Code, hint string) *Failure {
	return &Failure{Code: code, Hint: hint}
}

func Wrap(code Code, hint string, cause error) *Failure {
	return &Failure{Code: code, Hint: hint, Err: errors.Wrap(cause, hint)}
}

func Validationf(format string, a ...interface{}) *Failure {
	return New(Validation, fmt.Sprintf(format, a...))
}

func NotFoundf(format string, a ...interface{}) *Failure {
	return New(NotFound, fmt.Sprintf(format, a...))
}

func Forbiddenf(format string, a ...interface{}) *Failure {
	return New(Authorization, fmt.Sprintf(format, a...))
}

func Conflictf(format string, a ...interface{}) *Failure {
	return New(Conflict, fmt.Sprintf(format, a...))
}

func Overflowf(format string, a ...interface{}) *Failure {
	return New(Overflow, fmt.Sprintf(format, a...))
}

// As reports whether err (or something it wraps) is a *Failure, following
// the teacher's "exceptions vs. results" note (spec §9).
func As(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Cause unwraps pkg/errors-wrapped causes for logging; the HTTP boundary's
// internal-error branch in internal/api/respond.go uses it.
func Cause(err error) error { return errors.Cause(err) }
