/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package httpparse implements the incremental HTTP/1.x request-head
// parser: request-line, headers, and the framing decision (content-length,
// chunked, or no body) that determines how the worker reads the body that
// follows.
package httpparse

import "io"

// Header is one (name, value) pair in first-occurrence order.
type Header struct {
	Name  string
	Value string
}

// Headers preserves insertion order; lookups are case-insensitive.
type Headers []Header

// Get returns the first value for name, case-insensitively, and whether it
// was found.
func (h Headers) Get(name string) (string, bool) {
	for _, f := range h {
		if equalFold(f.Name, name) {
			return f.Value, true
		}
	}

	return "", false
}

// Values returns every value for name in occurrence order.
func (h Headers) Values(name string) []string {
	var r []string
	for _, f := range h {
		if equalFold(f.Name, name) {
			r = append(r, f.Value)
		}
	}

	return r
}

// Framing records which of the three mutually exclusive body-framing
// mechanisms applies to a parsed request.
type Framing int

const (
	FramingNone Framing = iota
	FramingLength
	FramingChunked
)

// Request is the parsed request head. Body is only valid once the parser
// has reached DONE on the head (see Parser.Head); it streams from the
// connection's remaining bytes, decoded according to Framing.
type Request struct {
	Method string

	RawTarget string
	Scheme    string
	Host      string
	Path      string
	RawQuery  string
	Fragment  string

	Major int
	Minor int

	Headers Headers
	Environ map[string]string

	Framing       Framing
	ContentLength int64

	Body io.Reader

	Trailers Headers
}

// KeepAlive reports whether the connection should remain open after this
// exchange, per §4.3's persistence rule: HTTP/1.1 defaults to keep-alive,
// HTTP/1.0 defaults to close, and an explicit Connection header overrides
// either default.
func (r *Request) KeepAlive() bool {
	v, ok := r.Headers.Get("Connection")
	if ok {
		return equalFold(v, "keep-alive")
	}

	return r.Major == 1 && r.Minor == 1
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}

	return true
}
