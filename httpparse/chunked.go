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

// forbiddenTrailerNames are the headers §4.1 says must never be smuggled
// in through a trailer, since a worker that merged them post-hoc would let
// a trailer silently change framing or host after the request was already
// routed.
var forbiddenTrailerNames = []string{"content-length", "transfer-encoding", "host"}

// chunkedReader decodes a Transfer-Encoding: chunked body per the CHUNK_SIZE
// -> CHUNK_DATA -> CHUNK_CRLF state loop in §4.1, stopping at the zero-size
// chunk and then parsing trailers up to CRLF CRLF.
type chunkedReader struct {
	src      *bufio.Reader
	opts     Options
	trailers *Headers

	remaining int64
	done      bool
	err       error
}

func newChunkedReader(src *bufio.Reader, opts Options, trailers *Headers) io.Reader {
	return &chunkedReader{src: src, opts: opts, trailers: trailers}
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}

	if c.done {
		return 0, io.EOF
	}

	if c.remaining == 0 {
		if err := c.nextChunkSize(); err != nil {
			c.err = err
			return 0, err
		}

		if c.remaining == 0 {
			if err := c.readTrailers(); err != nil {
				c.err = err
				return 0, err
			}

			c.done = true
			return 0, io.EOF
		}
	}

	if int64(len(p)) > c.remaining {
		p = p[:c.remaining]
	}

	n, err := c.src.Read(p)
	c.remaining -= int64(n)

	if err != nil {
		c.err = err
		return n, err
	}

	if c.remaining == 0 {
		if derr := c.consumeCRLF(); derr != nil {
			c.err = derr
			return n, derr
		}
	}

	return n, nil
}

func (c *chunkedReader) nextChunkSize() error {
	line, err := c.readCRLFLine(32)
	if err != nil {
		return err
	}

	if i := bytes.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return gerrError(ErrInvalidChunkSize)
	}

	for _, b := range line {
		if !isHexDigit(b) {
			return gerrError(ErrInvalidChunkSize)
		}
	}

	n, err := strconv.ParseInt(string(line), 16, 64)
	if err != nil || n < 0 {
		return gerrError(ErrInvalidChunkSize)
	}

	c.remaining = n
	return nil
}

func (c *chunkedReader) consumeCRLF() error {
	cr, err := c.src.ReadByte()
	if err != nil {
		return err
	}

	lf, err := c.src.ReadByte()
	if err != nil {
		return err
	}

	if cr != '\r' || lf != '\n' {
		return gerrError(ErrInvalidChunkSize)
	}

	return nil
}

// readTrailers parses zero or more trailer header lines, rejecting any
// name in forbiddenTrailerNames so a trailer can never retroactively alter
// framing or routing decisions already made from the head.
func (c *chunkedReader) readTrailers() error {
	for {
		line, err := c.readCRLFLine(c.opts.Limits.HeaderField)
		if err != nil {
			return err
		}

		if len(line) == 0 {
			return nil
		}

		name, value, err := splitHeaderLine(line, c.opts.StripHeaderSpaces)
		if err != nil {
			return err
		}

		lower := strings.ToLower(name)
		for _, forbidden := range forbiddenTrailerNames {
			if lower == forbidden {
				return gerrError(ErrForbiddenTrailerField)
			}
		}

		if c.trailers != nil {
			*c.trailers = append(*c.trailers, Header{Name: name, Value: value})
		}
	}
}

func (c *chunkedReader) readCRLFLine(limit int) ([]byte, error) {
	var buf []byte

	for {
		b, err := c.src.ReadByte()
		if err != nil {
			return nil, err
		}

		if b == '\n' {
			if len(buf) == 0 || buf[len(buf)-1] != '\r' {
				return nil, gerrError(ErrInvalidHeader)
			}

			return buf[:len(buf)-1], nil
		}

		buf = append(buf, b)

		if limit > 0 && len(buf) > limit {
			return nil, gerrError(ErrLimitRequestFieldSize)
		}
	}
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
