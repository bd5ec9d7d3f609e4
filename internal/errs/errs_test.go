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

package errs

import (
	"errors"
	"testing"
)

func TestWrapAndKindOf(t *testing.T) {
	cause := errors.New("eof")
	err := Wrap(TimedOut, cause, "recv")
	if KindOf(err) != TimedOut {
		t.Fatalf("KindOf = %v, want TimedOut", KindOf(err))
	}
	if !Is(err, TimedOut) {
		t.Fatalf("Is(err, TimedOut) = false")
	}
	if Is(err, NotConnected) {
		t.Fatalf("Is(err, NotConnected) = true, want false")
	}
}

func TestWrapNilCause(t *testing.T) {
	err := Wrap(InvalidInput, nil, "bad url")
	if KindOf(err) != InvalidInput {
		t.Fatalf("KindOf = %v, want InvalidInput", KindOf(err))
	}
	if err.Error() != "invalid input: bad url" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if KindOf(errors.New("raw")) != Other {
		t.Fatalf("KindOf(raw error) should default to Other")
	}
}

func TestUnwrap(t *testing.T) {
	err := Wrap(ConnectionReset, errors.New("root"), "peer hung up")
	if err.Unwrap() == nil {
		t.Fatalf("Unwrap() returned nil")
	}
}
