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

package wsgi_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/goicorn/httpparse"
	"github.com/nabbar/goicorn/wsgi"
)

func TestWSGI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "wsgi suite")
}

var _ = Describe("Invoke", func() {
	It("passes through a well-behaved application's response", func() {
		app := wsgi.ApplicationFunc(func(context.Context, *wsgi.Request) (*wsgi.Response, error) {
			return &wsgi.Response{Status: 200, Reason: "OK", Body: bytes.NewReader([]byte("hi"))}, nil
		})

		resp, err := wsgi.Invoke(context.Background(), app, &wsgi.Request{})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Status).To(Equal(200))

		b, _ := io.ReadAll(resp.Body)
		Expect(string(b)).To(Equal("hi"))
	})

	It("turns a returned error into a 500 without propagating it", func() {
		app := wsgi.ApplicationFunc(func(context.Context, *wsgi.Request) (*wsgi.Response, error) {
			return nil, errors.New("boom")
		})

		var errLog bytes.Buffer
		resp, err := wsgi.Invoke(context.Background(), app, &wsgi.Request{ErrorLog: &errLog})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Status).To(Equal(500))
		Expect(errLog.String()).To(ContainSubstring("boom"))
	})

	It("turns a panic into a 500 without taking the worker down", func() {
		app := wsgi.ApplicationFunc(func(context.Context, *wsgi.Request) (*wsgi.Response, error) {
			panic("application exploded")
		})

		resp, err := wsgi.Invoke(context.Background(), app, &wsgi.Request{})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Status).To(Equal(500))
	})

	It("falls back to 500 when the application returns a nil response and nil error", func() {
		app := wsgi.ApplicationFunc(func(context.Context, *wsgi.Request) (*wsgi.Response, error) {
			return nil, nil
		})

		resp, err := wsgi.Invoke(context.Background(), app, &wsgi.Request{})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Status).To(Equal(500))
	})
})

var _ = Describe("BuildRequest", func() {
	It("fills SERVER_NAME and SERVER_PORT without clobbering an existing value", func() {
		head := &httpparse.Request{Environ: map[string]string{"REQUEST_METHOD": "GET"}}

		req := wsgi.BuildRequest(head, "example.invalid", "8000", nil)
		Expect(req.Environ["SERVER_NAME"]).To(Equal("example.invalid"))
		Expect(req.Environ["SERVER_PORT"]).To(Equal("8000"))
		Expect(req.Environ["REQUEST_METHOD"]).To(Equal("GET"))
	})

	It("never returns a nil body", func() {
		req := wsgi.BuildRequest(&httpparse.Request{}, "h", "p", nil)
		Expect(req.Body).NotTo(BeNil())
	})
})
