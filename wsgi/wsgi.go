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

// Package wsgi defines the application-callable contract the worker invokes
// once per request: an environ mapping, an input stream, and a lazy
// byte-chunk body the application yields back. It is polymorphic over that
// capability set rather than any inheritance hierarchy.
package wsgi

import (
	"bytes"
	"context"
	"io"
	"strconv"
)

// Header is one response header pair, kept ordered the way the core
// preserves request headers.
type Header struct {
	Name  string
	Value string
}

// Request is what the worker hands the application: the CGI-style environ
// built by the parser, the request body as an input stream, and an error
// stream the application may write diagnostics to.
type Request struct {
	Environ  map[string]string
	Body     io.Reader
	ErrorLog io.Writer
}

// Response is what the application hands back: a status, a reason phrase,
// ordered headers, and a lazy body. Body is read in chunks by the worker,
// never buffered whole, so a streaming application never has to build its
// entire output in memory first.
type Response struct {
	Status  int
	Reason  string
	Headers []Header
	Body    io.Reader
}

// Application is the trait a deployment's callable must satisfy. Serve is
// invoked once per request; returning an error is equivalent to raising
// inside the callable and is surfaced as a 500 by the caller.
type Application interface {
	Serve(ctx context.Context, req *Request) (*Response, error)
}

// ApplicationFunc adapts a plain function to Application, the same way
// http.HandlerFunc adapts a function to http.Handler.
type ApplicationFunc func(ctx context.Context, req *Request) (*Response, error)

func (f ApplicationFunc) Serve(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// NewBadApplication returns a fallback Application that answers every
// request with 500, used when no application specifier resolves to
// anything callable.
func NewBadApplication() Application {
	return ApplicationFunc(func(context.Context, *Request) (*Response, error) {
		return &Response{
			Status: 500,
			Reason: "Internal Server Error",
			Body:   bytes.NewReader(nil),
		}, nil
	})
}

// Invoke calls app.Serve, recovering a panic from within the application so
// a single bad handler never takes the worker process down with it. A
// recovered panic and a returned error are both turned into a synthetic 500.
func Invoke(ctx context.Context, app Application, req *Request) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = errorResponse(req, r)
			err = nil
		}
	}()

	resp, err = app.Serve(ctx, req)
	if err != nil {
		resp = errorResponse(req, err)
		err = nil
	}

	if resp == nil {
		resp = errorResponse(req, "application returned no response")
	}

	return resp, nil
}

func errorResponse(req *Request, cause interface{}) *Response {
	if req != nil && req.ErrorLog != nil {
		_, _ = io.WriteString(req.ErrorLog, formatCause(cause)+"\n")
	}

	body := []byte("Internal Server Error")

	return &Response{
		Status: 500,
		Reason: "Internal Server Error",
		Headers: []Header{
			{Name: "Content-Type", Value: "text/plain; charset=utf-8"},
			{Name: "Content-Length", Value: strconv.Itoa(len(body))},
		},
		Body: bytes.NewReader(body),
	}
}

func formatCause(cause interface{}) string {
	if err, ok := cause.(error); ok {
		return err.Error()
	}

	if s, ok := cause.(string); ok {
		return s
	}

	return "application error"
}
