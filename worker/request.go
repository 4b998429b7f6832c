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
	"bufio"
	"context"
	"net"
	"time"

	"github.com/nabbar/goicorn/gerrors"
	"github.com/nabbar/goicorn/glog"
	"github.com/nabbar/goicorn/hooks"
	"github.com/nabbar/goicorn/httpparse"
	"github.com/nabbar/goicorn/wsgi"
)

// handleConn serves successive keep-alive requests on one connection, up to
// MaxPipelinedKeepAlive, closing as soon as persistence rules say to. Each
// request is read through a fresh buffered reader, so bytes the client sent
// past the current request (a pipelined next request) are not kept.
func (w *Worker) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	host, port := splitHostPort(conn.LocalAddr())
	serverName, serverPort := w.cfg.ServerName, w.cfg.ServerPort

	if serverName == "" {
		serverName = host
	}

	if serverPort == "" {
		serverPort = port
	}

	for i := 0; i < w.cfg.MaxPipelinedKeepAlive; i++ {
		if w.cfg.Timeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(w.cfg.Timeout))
		}

		keepAlive, err := w.serveOne(ctx, conn, serverName, serverPort)
		w.requestsServed.Add(1)

		if err != nil || !keepAlive {
			return
		}

		if w.state.Load() != StateRunning {
			return
		}

		if w.cfg.KeepAliveWindow > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(w.cfg.KeepAliveWindow))
		}
	}
}

// serveOne parses exactly one request head off conn, dispatches it to the
// application, writes the response, and reports whether the connection
// should stay open for a further pipelined request.
func (w *Worker) serveOne(ctx context.Context, conn net.Conn, serverName, serverPort string) (bool, error) {
	opts := w.cfg.ParseOptions
	opts.TrustedPeer = isTrustedPeer(conn.RemoteAddr(), w.cfg.ForwardedAllowIPs)

	p := httpparse.NewParser(opts)
	br := bufio.NewReaderSize(conn, 4096)
	buf := make([]byte, 4096)

	for {
		n, err := br.Read(buf)
		if n > 0 {
			done, ferr := p.Feed(buf[:n])
			if ferr != nil {
				w.writeParseError(conn, ferr)
				return false, ferr
			}

			if done {
				break
			}
		}

		if err != nil {
			// Connection closed (or timed out) before a head completed;
			// this is the normal way a keep-alive connection ends.
			return false, err
		}
	}

	head := p.Head()
	p.WireBody(br)

	wreq := wsgi.BuildRequest(head, serverName, serverPort, w.errorLog())

	w.hk.CallPreRequest(w, &hooks.Request{Method: head.Method, Path: head.Path, Environ: wreq.Environ})

	resp, _ := wsgi.Invoke(ctx, w.app, wreq)

	// The persistence decision must be made before the head is written,
	// since writeResponse needs it to emit the Connection header.
	keepAlive := w.decidePersistence(head, resp)

	written, werr := writeResponse(conn, head, resp, keepAlive)

	w.hk.CallPostRequest(w, &hooks.Request{Method: head.Method, Path: head.Path, Environ: wreq.Environ}, &hooks.Response{Status: resp.Status, Bytes: written})

	if werr != nil {
		return false, werr
	}

	return keepAlive, nil
}

// decidePersistence implements §4.3's close conditions: HTTP/1.0 without
// an explicit keep-alive, a global keep-alive disable, an application
// opt-out via Connection: close, or any framing anomaly already caught
// upstream (those never reach here, since they abort with an error first).
func (w *Worker) decidePersistence(head *httpparse.Request, resp *wsgi.Response) bool {
	if w.cfg.KeepAliveWindow <= 0 {
		return false
	}

	if !head.KeepAlive() {
		return false
	}

	for _, h := range resp.Headers {
		if equalFold(h.Name, "Connection") && equalFold(h.Value, "close") {
			return false
		}
	}

	return true
}

func (w *Worker) writeParseError(conn net.Conn, err error) {
	status := 400

	if ce, ok := err.(gerrors.Error); ok {
		status = httpparse.StatusFor(ce.GetCode())
	}

	resp := &wsgi.Response{Status: status, Reason: "Bad Request"}
	_, _ = writeResponse(conn, &httpparse.Request{Major: 1, Minor: 1}, resp, false)

	if w.log != nil {
		w.log.Entry(glog.WarnLevel, "request head rejected").ErrorAdd(err).Log()
	}
}

// isTrustedPeer checks remote against forwarded_allow_ips: "*" trusts any
// peer, otherwise the connection's host (port stripped) must match one of
// the listed addresses exactly, mirroring gunicorn's own comparison
// (no CIDR matching).
func isTrustedPeer(remote net.Addr, allow []string) bool {
	if len(allow) == 0 {
		return false
	}

	host, _ := splitHostPort(remote)

	for _, a := range allow {
		if a == "*" || a == host {
			return true
		}
	}

	return false
}

func splitHostPort(addr net.Addr) (string, string) {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), ""
	}

	return host, port
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]

		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}

		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}

		if ca != cb {
			return false
		}
	}

	return true
}
