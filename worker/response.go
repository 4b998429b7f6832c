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

package worker

import (
	"fmt"
	"io"
	"net"
	"net/textproto"
	"os"
	"time"

	"github.com/nabbar/goicorn/httpparse"
	"github.com/nabbar/goicorn/wsgi"
)

var statusText = map[int]string{
	200: "OK", 201: "Created", 204: "No Content",
	301: "Moved Permanently", 302: "Found", 304: "Not Modified",
	400: "Bad Request", 401: "Unauthorized", 403: "Forbidden", 404: "Not Found",
	405: "Method Not Allowed", 408: "Request Timeout", 414: "URI Too Long",
	431: "Request Header Fields Too Large",
	500: "Internal Server Error", 501: "Not Implemented",
	502: "Bad Gateway", 503: "Service Unavailable", 505: "HTTP Version Not Supported",
}

func reasonFor(status int, given string) string {
	if given != "" {
		return given
	}

	if t, ok := statusText[status]; ok {
		return t
	}

	return "Unknown"
}

// writeResponse serializes the status line, headers (with the server's own
// Date/Server/Connection additions), and the body, returning the number of
// body bytes written. It prefers the sendfile fast path when the body is
// *os.File backed, via ReadFrom, which the Go runtime lowers to sendfile(2)
// on Linux for a plain *net.TCPConn destination.
//
// keepAlive is the persistence decision the caller already made (§4.3); it
// must be computed before the head is written, not after, since it drives
// the Connection header this function emits.
func writeResponse(conn net.Conn, head *httpparse.Request, resp *wsgi.Response, keepAlive bool) (int64, error) {
	status := resp.Status
	if status == 0 {
		status = 200
	}

	statusLine := fmt.Sprintf("HTTP/%d.%d %d %s\r\n", max1(head.Major), head.Minor, status, reasonFor(status, resp.Reason))
	if _, err := io.WriteString(conn, statusLine); err != nil {
		return 0, err
	}

	hasDate, hasServer, hasConnection := false, false, false

	for _, h := range resp.Headers {
		switch textproto.CanonicalMIMEHeaderKey(h.Name) {
		case "Date":
			hasDate = true
		case "Server":
			hasServer = true
		case "Connection":
			hasConnection = true
		}

		if _, err := fmt.Fprintf(conn, "%s: %s\r\n", h.Name, h.Value); err != nil {
			return 0, err
		}
	}

	if !hasDate {
		if _, err := fmt.Fprintf(conn, "Date: %s\r\n", time.Now().UTC().Format(http1Date)); err != nil {
			return 0, err
		}
	}

	if !hasServer {
		if _, err := io.WriteString(conn, "Server: goicorn\r\n"); err != nil {
			return 0, err
		}
	}

	if !hasConnection {
		value := "close"
		if keepAlive {
			value = "keep-alive"
		}

		if _, err := fmt.Fprintf(conn, "Connection: %s\r\n", value); err != nil {
			return 0, err
		}
	}

	if _, err := io.WriteString(conn, "\r\n"); err != nil {
		return 0, err
	}

	if resp.Body == nil {
		return 0, nil
	}

	if f, ok := resp.Body.(*os.File); ok {
		if rf, ok := conn.(io.ReaderFrom); ok {
			return rf.ReadFrom(f)
		}
	}

	return io.Copy(conn, resp.Body)
}

func max1(major int) int {
	if major <= 0 {
		return 1
	}

	return major
}

const http1Date = "Mon, 02 Jan 2006 15:04:05 GMT"
