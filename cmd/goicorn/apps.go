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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nabbar/goicorn/wsgi"
)

// resolveApp turns the positional application specifier into a
// wsgi.Application. The callable calling convention is explicitly out of
// scope for the core (§6): there is no Python-style "module:callable"
// import string in a statically compiled Go binary, so this binary
// recognizes a small closed set of built-in demo applications instead.
// Anything else falls back to wsgi.NewBadApplication, which answers every
// request with 500 rather than refusing to start.
func resolveApp(spec string, errLog io.Writer) wsgi.Application {
	name, arg, _ := strings.Cut(spec, ":")

	switch name {
	case "", "echo":
		return wsgi.ApplicationFunc(echoApp)
	case "static":
		dir := arg
		if dir == "" {
			dir = "."
		}
		return staticApp{root: dir}
	default:
		if errLog != nil {
			fmt.Fprintf(errLog, "unrecognized application specifier %q, falling back to the 500 stub\n", spec)
		}
		return wsgi.NewBadApplication()
	}
}

// echoApp reports the request line back to the caller, useful for
// smoke-testing a fresh bind without wiring a real application.
func echoApp(_ context.Context, req *wsgi.Request) (*wsgi.Response, error) {
	body := fmt.Sprintf("%s %s\n", req.Environ["REQUEST_METHOD"], req.Environ["PATH_INFO"])

	return &wsgi.Response{
		Status: 200,
		Body:   strings.NewReader(body),
	}, nil
}

// staticApp serves files below root, the same shape as gunicorn's own
// examples/standalone_app.py but as an Application rather than a test
// fixture, so --app static:/var/www is a usable deployment of this binary
// on its own.
type staticApp struct {
	root string
}

func (s staticApp) Serve(_ context.Context, req *wsgi.Request) (*wsgi.Response, error) {
	path := req.Environ["PATH_INFO"]
	if path == "" || path == "/" {
		path = "/index.html"
	}

	// filepath.Clean collapses "..", then the Rel check below refuses
	// anything that still climbs out of root, so a PATH_INFO of
	// "/../../etc/passwd" cannot escape the served tree.
	clean := filepath.Clean("/" + path)
	full := filepath.Join(s.root, clean)

	if rel, err := filepath.Rel(s.root, full); err != nil || strings.HasPrefix(rel, "..") {
		return &wsgi.Response{Status: 404, Body: strings.NewReader("not found")}, nil
	}

	f, err := os.Open(full)
	if err != nil {
		return &wsgi.Response{Status: 404, Body: strings.NewReader("not found")}, nil
	}

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		_ = f.Close()
		return &wsgi.Response{Status: 404, Body: strings.NewReader("not found")}, nil
	}

	return &wsgi.Response{
		Status: 200,
		Headers: []wsgi.Header{
			{Name: "Content-Type", Value: contentTypeFor(path)},
		},
		Body: f,
	}, nil
}

// contentTypeFor guesses by extension rather than sniffing bytes, so a
// static file is never read twice just to pick its header.
func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".html"):
		return "text/html; charset=utf-8"
	case strings.HasSuffix(path, ".css"):
		return "text/css; charset=utf-8"
	case strings.HasSuffix(path, ".js"):
		return "application/javascript; charset=utf-8"
	case strings.HasSuffix(path, ".json"):
		return "application/json; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
