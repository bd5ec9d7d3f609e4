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

package transport

import (
	"context"
	"net/url"
	"strings"

	"github.com/xtaci/spnet/internal/errs"
)

// ParsedURL is the result of parsing one of the two supported transport
// URL schemes.
type ParsedURL struct {
	Scheme string // "tcp" or "ipc"
	Target string // "host:port" for tcp, filesystem path for ipc
}

// Parse validates raw against the supported schemes: tcp://<host>:<port>
// and ipc://<path>.
func Parse(raw string) (ParsedURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ParsedURL{}, errs.Wrap(errs.InvalidInput, err, "parse url "+raw)
	}
	switch u.Scheme {
	case "tcp":
		if u.Host == "" {
			return ParsedURL{}, errs.New(errs.InvalidInput, "tcp url missing host:port: "+raw)
		}
		return ParsedURL{Scheme: "tcp", Target: u.Host}, nil
	case "ipc":
		path := u.Opaque
		if path == "" {
			path = u.Path
		}
		path = strings.TrimPrefix(path, "//")
		if path == "" {
			return ParsedURL{}, errs.New(errs.InvalidInput, "ipc url missing path: "+raw)
		}
		return ParsedURL{Scheme: "ipc", Target: path}, nil
	default:
		return ParsedURL{}, errs.New(errs.InvalidInput, "unknown scheme: "+u.Scheme)
	}
}

// Dial opens an outbound Connection for a parsed URL.
func Dial(ctx context.Context, pu ParsedURL) (Connection, error) {
	switch pu.Scheme {
	case "tcp":
		return DialTCP(ctx, pu.Target)
	case "ipc":
		return DialIPC(ctx, pu.Target)
	default:
		return nil, errs.New(errs.InvalidInput, "unknown scheme: "+pu.Scheme)
	}
}

// Listen binds a Listener for a parsed URL.
func Listen(pu ParsedURL) (Listener, error) {
	switch pu.Scheme {
	case "tcp":
		return ListenTCP(pu.Target)
	case "ipc":
		return ListenIPC(pu.Target)
	default:
		return nil, errs.New(errs.InvalidInput, "unknown scheme: "+pu.Scheme)
	}
}
