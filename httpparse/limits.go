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

package httpparse

// HeaderMapPolicy controls what happens to a header name the environ
// mapping cannot unambiguously represent.
type HeaderMapPolicy int

const (
	HeaderMapDrop HeaderMapPolicy = iota
	HeaderMapRefuse
	HeaderMapDangerous
)

func ParseHeaderMapPolicy(s string) HeaderMapPolicy {
	switch s {
	case "refuse":
		return HeaderMapRefuse
	case "dangerous":
		return HeaderMapDangerous
	default:
		return HeaderMapDrop
	}
}

// Limits bounds request-head size, mirroring gunicorn's limit_request_*
// settings. Zero/negative fields fall back to the package defaults.
type Limits struct {
	RequestLine   int
	HeaderFields  int
	HeaderField   int
}

// DefaultLimits matches the defaults documented in §4.1.
func DefaultLimits() Limits {
	return Limits{
		RequestLine:  4094,
		HeaderFields: 100,
		HeaderField:  8190,
	}
}

func (l Limits) normalize() Limits {
	d := DefaultLimits()

	if l.RequestLine <= 0 {
		l.RequestLine = d.RequestLine
	}

	if l.HeaderFields <= 0 {
		l.HeaderFields = d.HeaderFields
	}

	if l.HeaderField <= 0 {
		l.HeaderField = d.HeaderField
	}

	return l
}

// Options gathers every acceptance-relaxation flag named across §4.1 so the
// Parser constructor takes one value instead of a dozen booleans.
type Options struct {
	Limits Limits

	PermitUnconventionalMethod  bool
	CasefoldMethod              bool
	PermitUnconventionalVersion bool
	StripHeaderSpaces           bool
	PermitObsoleteFolding       bool

	HeaderMap         HeaderMapPolicy
	ForwarderHeaders  []string
	TrustedPeer       bool
	SecureSchemeHeaders map[string]string
}

func (o Options) normalize() Options {
	o.Limits = o.Limits.normalize()
	return o
}
