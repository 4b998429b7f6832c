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
	"io"
	"strconv"
	"strings"
)

// finishHeaders runs once HEADERS_DONE is reached: it resolves the framing
// decision, validates the secure-scheme headers, and builds the environ
// mapping. Errors here are all fatal per §4.1's fail-closed framing rules.
func (p *Parser) finishHeaders() error {
	if err := p.resolveFraming(); err != nil {
		return err
	}

	if err := p.resolveSecureScheme(); err != nil {
		return err
	}

	return p.buildEnviron()
}

func (p *Parser) resolveFraming() error {
	cl, hasCL, clErr := mergedContentLength(p.req.Headers)
	te, hasTE := p.req.Headers.Get("Transfer-Encoding")

	if clErr != nil {
		return clErr
	}

	if hasCL && hasTE {
		return gerrError(ErrConflictingFraming)
	}

	if hasTE {
		if p.req.Major == 1 && p.req.Minor == 0 {
			return gerrError(ErrConflictingFraming)
		}

		chunked, err := validateTransferEncoding(te)
		if err != nil {
			return err
		}

		if !chunked {
			p.req.Framing = FramingNone
			return nil
		}

		p.req.Framing = FramingChunked
		return nil
	}

	if hasCL {
		p.req.Framing = FramingLength
		p.req.ContentLength = cl
		return nil
	}

	p.req.Framing = FramingNone
	return nil
}

// mergedContentLength merges duplicate Content-Length headers that agree
// and rejects duplicates that disagree, per §4.1.
func mergedContentLength(h Headers) (int64, bool, error) {
	values := h.Values("Content-Length")
	if len(values) == 0 {
		return 0, false, nil
	}

	first, err := strconv.ParseInt(strings.TrimSpace(values[0]), 10, 64)
	if err != nil || first < 0 {
		return 0, false, gerrError(ErrInvalidHeader)
	}

	for _, v := range values[1:] {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || n != first {
			return 0, false, gerrError(ErrConflictingFraming)
		}
	}

	return first, true, nil
}

// validateTransferEncoding parses a comma-separated coding list; only the
// codings named in §4.1 are accepted and only "chunked" as the last one
// triggers chunked framing. coding parameters are always rejected.
func validateTransferEncoding(te string) (chunked bool, err error) {
	parts := strings.Split(te, ",")

	for i, raw := range parts {
		c := strings.ToLower(strings.TrimSpace(raw))
		if c == "" {
			return false, gerrError(ErrInvalidHeader)
		}

		if strings.Contains(c, ";") {
			return false, gerrError(ErrInvalidHeader)
		}

		switch c {
		case "chunked", "compress", "deflate", "gzip":
		default:
			return false, gerrError(ErrInvalidHeader)
		}

		if i == len(parts)-1 && c == "chunked" {
			chunked = true
		}
	}

	return chunked, nil
}

// resolveSecureScheme applies the secure_scheme_headers dictionary: a
// trusted peer presenting at least one matching pair sets url_scheme to
// https; present entries that disagree (one matches, another does not)
// are rejected outright.
func (p *Parser) resolveSecureScheme() error {
	p.req.Scheme = "http"

	if !p.opts.TrustedPeer || len(p.opts.SecureSchemeHeaders) == 0 {
		return nil
	}

	matched, mismatched := 0, 0
	for name, want := range p.opts.SecureSchemeHeaders {
		got, ok := p.req.Headers.Get(name)
		if !ok {
			continue
		}

		if equalFold(got, want) {
			matched++
		} else {
			mismatched++
		}
	}

	if matched > 0 && mismatched > 0 {
		return gerrError(ErrInvalidSchemeHeaders)
	}

	if matched > 0 {
		p.req.Scheme = "https"
	}

	return nil
}

// buildEnviron maps parsed headers into CGI-style HTTP_* environ keys,
// applying header_map to names that normalize ambiguously (an underscore
// and a hyphen in two different header names collide once both become
// HTTP_FOO_BAR) unless the name is in ForwarderHeaders from a trusted
// source.
func (p *Parser) buildEnviron() error {
	env := p.req.Environ
	if env == nil {
		env = make(map[string]string)
	}

	env["REQUEST_METHOD"] = p.req.Method
	env["PATH_INFO"] = p.req.Path
	env["QUERY_STRING"] = p.req.RawQuery
	env["SERVER_PROTOCOL"] = "HTTP/" + strconv.Itoa(p.req.Major) + "." + strconv.Itoa(p.req.Minor)
	env["url_scheme"] = p.req.Scheme

	seen := make(map[string]string, len(p.req.Headers))

	for _, f := range p.req.Headers {
		if equalFold(f.Name, "Content-Type") {
			env["CONTENT_TYPE"] = f.Value
			continue
		}

		if equalFold(f.Name, "Content-Length") {
			env["CONTENT_LENGTH"] = f.Value
			continue
		}

		if equalFold(f.Name, "Host") {
			p.req.Host = f.Value
		}

		trusted := p.opts.TrustedPeer && containsFold(p.opts.ForwarderHeaders, f.Name)

		// A header name carrying a literal underscore normalizes to the
		// exact same HTTP_* key as the same name spelled with a hyphen,
		// so it is ambiguous on its own, with or without a colliding
		// sibling in this request.
		if strings.Contains(f.Name, "_") && !trusted {
			switch p.opts.HeaderMap {
			case HeaderMapRefuse:
				return gerrError(ErrInvalidHeaderName)
			case HeaderMapDangerous:
				// dangerous accepts it as given; fall through to the
				// normal collision/assignment handling below.
			default:
				continue
			}
		}

		key := "HTTP_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))

		if prior, exists := seen[key]; exists && !trusted {
			switch p.opts.HeaderMap {
			case HeaderMapRefuse:
				return gerrError(ErrInvalidHeaderName)
			case HeaderMapDangerous:
				env[key] = prior + ", " + f.Value
				seen[key] = env[key]
				continue
			default:
				continue
			}
		}

		env[key] = f.Value
		seen[key] = f.Value
	}

	p.req.Environ = env
	return nil
}

func containsFold(list []string, name string) bool {
	for _, c := range list {
		if equalFold(c, name) {
			return true
		}
	}

	return false
}

// WireBody finalizes the Request's Body reader once the head is parsed,
// seeding it with any bytes already buffered past the head before reading
// more from conn.
func (p *Parser) WireBody(conn io.Reader) {
	full := io.MultiReader(bytes.NewReader(p.buf), conn)

	switch p.req.Framing {
	case FramingLength:
		p.req.Body = newLengthReader(full, p.req.ContentLength)
	case FramingChunked:
		p.req.Body = newChunkedReader(bufio.NewReader(full), p.opts, &p.req.Trailers)
	default:
		p.req.Body = emptyReader{}
	}
}
