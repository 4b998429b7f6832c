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

package httpparse_test

import (
	"io"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/goicorn/httpparse"
)

func TestHTTPParse(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "httpparse suite")
}

// feedSplit replays raw across the given split sizes, one Feed call per
// slice, and returns the parsed request once the head completes.
func feedSplit(raw []byte, splits []int) (*httpparse.Request, error) {
	p := httpparse.NewParser(httpparse.Options{})

	i := 0
	for _, n := range splits {
		if i >= len(raw) {
			break
		}

		end := i + n
		if end > len(raw) {
			end = len(raw)
		}

		done, err := p.Feed(raw[i:end])
		if err != nil {
			return nil, err
		}

		if done {
			return p.Head(), nil
		}

		i = end
	}

	done, err := p.Feed(raw[i:])
	if err != nil {
		return nil, err
	}

	if !done {
		return nil, io.ErrUnexpectedEOF
	}

	return p.Head(), nil
}

var _ = Describe("Parser", func() {
	raw := []byte("GET /hello?x=1 HTTP/1.1\r\nHost: example.com\r\nUser-Agent: test\r\n\r\n")

	It("parses a request fed in one shot the same as fed byte by byte", func() {
		oneShot, err := feedSplit(raw, []int{len(raw)})
		Expect(err).NotTo(HaveOccurred())

		splits := make([]int, len(raw))
		for i := range splits {
			splits[i] = 1
		}

		byByte, err := feedSplit(raw, splits)
		Expect(err).NotTo(HaveOccurred())

		Expect(byByte.Method).To(Equal(oneShot.Method))
		Expect(byByte.Path).To(Equal(oneShot.Path))
		Expect(byByte.RawQuery).To(Equal(oneShot.RawQuery))
		Expect(byByte.Major).To(Equal(oneShot.Major))
		Expect(byByte.Minor).To(Equal(oneShot.Minor))
		Expect(byByte.Headers).To(Equal(oneShot.Headers))
	})

	It("parses the same request fed in arbitrary chunk sizes", func() {
		oneShot, err := feedSplit(raw, []int{len(raw)})
		Expect(err).NotTo(HaveOccurred())

		chunked, err := feedSplit(raw, []int{7, 3, 15, 1, 40})
		Expect(err).NotTo(HaveOccurred())

		Expect(chunked).To(Equal(oneShot))
	})

	It("rejects a request line using bare LF instead of CRLF", func() {
		_, err := feedSplit([]byte("GET / HTTP/1.1\nHost: x\r\n\r\n"), []int{1000})
		Expect(err).To(HaveOccurred())
	})

	It("rejects Content-Length and Transfer-Encoding present together", func() {
		bad := []byte("POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\nTransfer-Encoding: chunked\r\n\r\n")
		_, err := feedSplit(bad, []int{len(bad)})
		Expect(err).To(HaveOccurred())
	})

	It("decodes a chunked body once the head is wired to a connection", func() {
		head := []byte("POST / HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n")
		body := []byte("5\r\nhello\r\n0\r\n\r\n")

		p := httpparse.NewParser(httpparse.Options{})
		done, err := p.Feed(head)
		Expect(err).NotTo(HaveOccurred())
		Expect(done).To(BeTrue())

		p.WireBody(bytesReader(body))
		got, err := io.ReadAll(p.Head().Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(got)).To(Equal("hello"))
	})
})

type byteReader struct {
	b []byte
	i int
}

func bytesReader(b []byte) io.Reader {
	return &byteReader{b: b}
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.i >= len(r.b) {
		return 0, io.EOF
	}

	n := copy(p, r.b[r.i:])
	r.i += n

	return n, nil
}
