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

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/nabbar/goicorn/gerrors"
)

// state names the FSM's position; it follows the START -> REQUEST_LINE ->
// HEADER_NAME/HEADER_VALUE -> HEADERS_DONE progression.
type state int

const (
	stateRequestLine state = iota
	stateHeaders
	stateDone
)

// Parser incrementally consumes bytes pushed by Feed and, once the head is
// complete, exposes the parsed Request with its Body already wired to the
// correct framing decoder. It never blocks: Feed only touches bytes
// already buffered, and returns (false, nil) when it needs another call.
type Parser struct {
	opts  Options
	state state

	buf       []byte
	line      int
	req       *Request
	rawSrc    *bufio.Reader
	feedEOF   bool
}

// NewParser builds a Parser for one request head. A fresh Parser is needed
// per connection exchange; it is not reusable across requests.
func NewParser(opts Options) *Parser {
	return &Parser{opts: opts.normalize(), req: &Request{Environ: make(map[string]string)}}
}

// Feed appends newly available bytes to the internal buffer and tries to
// advance the state machine. It returns (true, nil) once the head is
// complete (see Head), (false, nil) when more bytes are required, and
// (false, err) on a fatal parse error.
//
// Feeding the same overall byte stream in different split points always
// reaches the same outcome, since the parser only ever acts on complete
// lines already present in the buffer (the round-trip law of §8's property
// 5).
func (p *Parser) Feed(b []byte) (bool, error) {
	if p.state == stateDone {
		return true, nil
	}

	p.buf = append(p.buf, b...)

	for {
		switch p.state {
		case stateRequestLine:
			line, ok, err := p.takeLine(p.opts.Limits.RequestLine, ErrLimitRequestLine)
			if err != nil {
				return false, err
			}

			if !ok {
				return false, nil
			}

			if err := p.parseRequestLine(line); err != nil {
				return false, err
			}

			p.state = stateHeaders

		case stateHeaders:
			line, ok, err := p.takeLine(p.opts.Limits.HeaderField, ErrLimitRequestFieldSize)
			if err != nil {
				return false, err
			}

			if !ok {
				return false, nil
			}

			if len(line) == 0 {
				if err := p.finishHeaders(); err != nil {
					return false, err
				}

				p.state = stateDone
				return true, nil
			}

			if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
				if !p.opts.PermitObsoleteFolding || len(p.req.Headers) == 0 {
					return false, gerrError(ErrInvalidHeader)
				}

				last := &p.req.Headers[len(p.req.Headers)-1]
				last.Value += " " + strings.TrimSpace(string(line))
				continue
			}

			if p.line++; p.line > p.opts.Limits.HeaderFields {
				return false, gerrError(ErrLimitRequestHeaders)
			}

			name, value, err := splitHeaderLine(line, p.opts.StripHeaderSpaces)
			if err != nil {
				return false, err
			}

			p.req.Headers = append(p.req.Headers, Header{Name: name, Value: value})

		case stateDone:
			return true, nil
		}
	}
}

// Head returns the parsed request once Feed has reported completion.
func (p *Parser) Head() *Request {
	return p.req
}

// takeLine extracts one CRLF-terminated line from the buffer without the
// trailing CRLF, advancing past it. ok is false when no full line is
// buffered yet. A bare LF (no preceding CR) is always rejected.
func (p *Parser) takeLine(limit int, overLimit gerrors.CodeError) ([]byte, bool, error) {
	idx := bytes.IndexByte(p.buf, '\n')
	if idx == -1 {
		if limit > 0 && len(p.buf) > limit {
			return nil, false, gerrError(overLimit)
		}

		return nil, false, nil
	}

	if idx == 0 || p.buf[idx-1] != '\r' {
		return nil, false, gerrError(ErrInvalidRequestLine)
	}

	line := p.buf[:idx-1]

	if limit > 0 && len(line) > limit {
		return nil, false, gerrError(overLimit)
	}

	p.buf = p.buf[idx+1:]

	cp := make([]byte, len(line))
	copy(cp, line)

	return cp, true, nil
}

func (p *Parser) parseRequestLine(line []byte) error {
	parts := bytes.Split(line, []byte(" "))
	if len(parts) != 3 {
		return gerrError(ErrInvalidRequestLine)
	}

	method := string(parts[0])
	if err := validateMethod(method, p.opts); err != nil {
		return err
	}

	if !p.opts.CasefoldMethod {
		p.req.Method = method
	} else {
		p.req.Method = strings.ToUpper(method)
	}

	target := string(parts[1])
	if len(target) == 0 {
		return gerrError(ErrInvalidRequestLine)
	}

	p.req.RawTarget = target
	splitTarget(p.req, target)

	major, minor, err := parseVersion(string(parts[2]), p.opts)
	if err != nil {
		return err
	}

	p.req.Major, p.req.Minor = major, minor

	return nil
}

func validateMethod(m string, opts Options) error {
	if len(m) == 0 || len(m) > 64 {
		return gerrError(ErrInvalidRequestMethod)
	}

	if opts.PermitUnconventionalMethod {
		return nil
	}

	for i := 0; i < len(m); i++ {
		if !isTokenChar(m[i]) {
			return gerrError(ErrInvalidRequestMethod)
		}
	}

	return nil
}

// isTokenChar implements the RFC 7230 "token" character class.
func isTokenChar(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}

	switch b {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}

	return false
}

func parseVersion(s string, opts Options) (int, int, error) {
	if opts.PermitUnconventionalVersion {
		if !strings.HasPrefix(s, "HTTP/") {
			return 0, 0, gerrError(ErrInvalidHTTPVersion)
		}

		dot := strings.IndexByte(s, '.')
		if dot < 0 {
			return 0, 0, gerrError(ErrInvalidHTTPVersion)
		}

		maj, err1 := strconv.Atoi(s[5:dot])
		min, err2 := strconv.Atoi(s[dot+1:])
		if err1 != nil || err2 != nil {
			return 0, 0, gerrError(ErrInvalidHTTPVersion)
		}

		return maj, min, nil
	}

	switch s {
	case "HTTP/1.0":
		return 1, 0, nil
	case "HTTP/1.1":
		return 1, 1, nil
	}

	return 0, 0, gerrError(ErrInvalidHTTPVersion)
}

func splitTarget(r *Request, target string) {
	if hash := strings.IndexByte(target, '#'); hash >= 0 {
		r.Fragment = target[hash+1:]
		target = target[:hash]
	}

	if q := strings.IndexByte(target, '?'); q >= 0 {
		r.RawQuery = target[q+1:]
		target = target[:q]
	}

	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		rest := target
		if i := strings.Index(rest, "://"); i >= 0 {
			r.Scheme = rest[:i]
			rest = rest[i+3:]
		}

		if i := strings.IndexByte(rest, '/'); i >= 0 {
			r.Host = rest[:i]
			r.Path = rest[i:]
		} else {
			r.Host = rest
			r.Path = "/"
		}

		return
	}

	r.Path = target
}

// splitHeaderLine parses "Name: value" (or "Name : value" only when
// stripSpaces is enabled) into a trimmed name/value pair, rejecting empty
// names and any CR/LF/NUL inside the value.
func splitHeaderLine(line []byte, stripSpaces bool) (string, string, error) {
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return "", "", gerrError(ErrInvalidHeader)
	}

	name := line[:colon]
	if bytes.IndexByte(name, ' ') >= 0 || bytes.IndexByte(name, '\t') >= 0 {
		if !stripSpaces {
			return "", "", gerrError(ErrInvalidHeaderName)
		}

		name = bytes.TrimSpace(name)
	}

	if len(name) == 0 {
		return "", "", gerrError(ErrInvalidHeaderName)
	}

	for _, b := range name {
		if !isTokenChar(b) {
			return "", "", gerrError(ErrInvalidHeaderName)
		}
	}

	value := bytes.TrimSpace(line[colon+1:])
	if bytes.IndexByte(value, 0) >= 0 || bytes.IndexByte(value, '\r') >= 0 || bytes.IndexByte(value, '\n') >= 0 {
		return "", "", gerrError(ErrInvalidHeader)
	}

	return string(name), string(value), nil
}

func gerrError(code gerrors.CodeError) error {
	return code.Error()
}
