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

package wsgi

import (
	"io"
	"strings"

	"github.com/nabbar/goicorn/httpparse"
)

// BuildRequest completes the environ the parser built with the two CGI
// variables only the worker can know (the listening endpoint's own name and
// port) and wires the request body and error stream, producing the
// Request an Application actually receives.
func BuildRequest(head *httpparse.Request, serverName, serverPort string, errLog io.Writer) *Request {
	env := make(map[string]string, len(head.Environ)+2)
	for k, v := range head.Environ {
		env[k] = v
	}

	if _, ok := env["SERVER_NAME"]; !ok {
		env["SERVER_NAME"] = serverName
	}

	if _, ok := env["SERVER_PORT"]; !ok {
		env["SERVER_PORT"] = serverPort
	}

	body := head.Body
	if body == nil {
		body = strings.NewReader("")
	}

	return &Request{
		Environ:  env,
		Body:     body,
		ErrorLog: errLog,
	}
}
