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

package worker_test

import (
	"bufio"
	"context"
	"io"
	"math/rand"
	"net"
	"net/http"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/require"

	"github.com/nabbar/goicorn/glog"
	"github.com/nabbar/goicorn/heartbeat"
	"github.com/nabbar/goicorn/hooks"
	"github.com/nabbar/goicorn/httpparse"
	"github.com/nabbar/goicorn/worker"
	"github.com/nabbar/goicorn/wsgi"
)

func TestWorker(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "worker suite")
}

var _ = Describe("State", func() {
	It("prints the expected names", func() {
		Expect(worker.StateSpawning.String()).To(Equal("spawning"))
		Expect(worker.StateRunning.String()).To(Equal("running"))
		Expect(worker.StateGracefulStopping.String()).To(Equal("graceful-stopping"))
		Expect(worker.StateTerminating.String()).To(Equal("terminating"))
		Expect(worker.StateReaped.String()).To(Equal("reaped"))
	})
})

func echoApp() wsgi.Application {
	return wsgi.ApplicationFunc(func(_ context.Context, req *wsgi.Request) (*wsgi.Response, error) {
		body := []byte("hello " + req.Environ["PATH_INFO"])
		return &wsgi.Response{
			Status: 200,
			Headers: []wsgi.Header{
				{Name: "Content-Type", Value: "text/plain"},
			},
			Body: byteReaderOf(body),
		}, nil
	})
}

type byteReader struct {
	b   []byte
	pos int
}

func byteReaderOf(b []byte) *byteReader { return &byteReader{b: b} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}

func TestServeOneRequestOverTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	hb, err := heartbeat.Create("")
	require.NoError(t, err)
	defer hb.Close()

	cfg := worker.Config{
		Timeout:               2 * time.Second,
		GracefulTimeout:       2 * time.Second,
		KeepAliveWindow:       0,
		MaxPipelinedKeepAlive: 1,
		ParseOptions: httpparse.Options{
			Limits: httpparse.DefaultLimits(),
		},
	}

	w := worker.New(1, 0, cfg, echoApp(), &hooks.Set{}, glog.New(glog.NilLevel, nil), hb, []net.Listener{ln}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /hi HTTP/1.1\r\nHost: example.invalid\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	resp, err := http.ReadResponse(reader, nil)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "close", resp.Header.Get("Connection"))

	<-done
}

func TestServeOneEmitsKeepAliveConnectionHeaderWhenPersisting(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	hb, err := heartbeat.Create("")
	require.NoError(t, err)
	defer hb.Close()

	cfg := worker.Config{
		Timeout:               2 * time.Second,
		GracefulTimeout:       2 * time.Second,
		KeepAliveWindow:       2 * time.Second,
		MaxPipelinedKeepAlive: 1,
		ParseOptions: httpparse.Options{
			Limits: httpparse.DefaultLimits(),
		},
	}

	w := worker.New(1, 0, cfg, echoApp(), &hooks.Set{}, glog.New(glog.NilLevel, nil), hb, []net.Listener{ln}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /hi HTTP/1.1\r\nHost: example.invalid\r\n\r\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	resp, err := http.ReadResponse(reader, nil)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "keep-alive", resp.Header.Get("Connection"))

	<-done
}

func TestJitteredMaxRequestsStaysWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 50; i++ {
		n := worker.JitteredMaxRequests(rng, 100, 20)
		require.GreaterOrEqual(t, n, 100)
		require.Less(t, n, 120)
	}
}
