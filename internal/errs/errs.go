// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package errs classifies the error kinds the facade promises callers:
// the reactor and everything under it returns one of these kinds, wrapped
// with context via github.com/pkg/errors, rather than raw I/O or syscall
// errors.
package errs

import (
	"github.com/pkg/errors"
)

// Kind is the closed set of error classes surfaced across the socket API.
type Kind int

const (
	// NotConnected: operation attempted before any pipe is active.
	NotConnected Kind = iota
	// InvalidInput: bad URL, unknown scheme, bad option, or a pattern
	// precondition violation (e.g. Rep.send before Rep.recv).
	InvalidInput
	// InvalidData: malformed wire bytes.
	InvalidData
	// TimedOut: a send/recv deadline elapsed.
	TimedOut
	// ConnectionReset: peer hung up.
	ConnectionReset
	// ConnectionAborted: poller/transport reported a fault.
	ConnectionAborted
	// WouldBlock is used only internally by the pipe layer and must never
	// reach a user-visible reply.
	WouldBlock
	// Other: any transport failure not covered above (bind EADDRINUSE, ...).
	Other
)

func (k Kind) String() string {
	switch k {
	case NotConnected:
		return "not connected"
	case InvalidInput:
		return "invalid input"
	case InvalidData:
		return "invalid data"
	case TimedOut:
		return "timed out"
	case ConnectionReset:
		return "connection reset"
	case ConnectionAborted:
		return "connection aborted"
	case WouldBlock:
		return "would block"
	default:
		return "other"
	}
}

// Error is a classified, wrapped error. The wrapped cause (if any) is kept
// so %+v still prints the originating stack via pkg/errors.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a bare classified error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, cause: errors.New(msg)}
}

// Wrap classifies cause under kind, attaching msg as context.
func Wrap(kind Kind, cause error, msg string) *Error {
	if cause == nil {
		return New(kind, msg)
	}
	return &Error{Kind: kind, cause: errors.Wrap(cause, msg)}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to Other for unclassified
// errors (e.g. a raw I/O error that escaped classification).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}
