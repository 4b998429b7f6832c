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

package hooks_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nabbar/goicorn/hooks"
)

type fakeServer struct{}

func (fakeServer) Workers() int      { return 2 }
func (fakeServer) Pid() int          { return 100 }
func (fakeServer) BindAddrs() []string { return []string{"127.0.0.1:8000"} }

type fakeWorker struct{}

func (fakeWorker) ID() int  { return 1 }
func (fakeWorker) Pid() int { return 200 }
func (fakeWorker) Age() int { return 0 }

func TestNilSetIsNoOp(t *testing.T) {
	var s *hooks.Set

	require.NotPanics(t, func() {
		s.CallOnStarting(fakeServer{})
		s.CallPreFork(fakeServer{}, fakeWorker{})
		s.CallNWorkersChanged(fakeServer{}, 3, 2)
	})
}

func TestEachHookFires(t *testing.T) {
	var (
		started, reloaded, ready, exited bool
		changedFrom, changedTo           int
	)

	s := &hooks.Set{
		OnStarting:      func(hooks.Server) { started = true },
		OnReload:        func(hooks.Server) { reloaded = true },
		WhenReady:       func(hooks.Server) { ready = true },
		OnExit:          func(hooks.Server) { exited = true },
		NWorkersChanged: func(_ hooks.Server, newVal, oldVal int) { changedTo, changedFrom = newVal, oldVal },
	}

	s.CallOnStarting(fakeServer{})
	s.CallOnReload(fakeServer{})
	s.CallWhenReady(fakeServer{})
	s.CallOnExit(fakeServer{})
	s.CallNWorkersChanged(fakeServer{}, 4, 2)

	require.True(t, started)
	require.True(t, reloaded)
	require.True(t, ready)
	require.True(t, exited)
	require.Equal(t, 4, changedTo)
	require.Equal(t, 2, changedFrom)
}

func TestPreAndPostRequestReceiveSameRequest(t *testing.T) {
	var seenPath string
	var seenStatus int

	s := &hooks.Set{
		PreRequest:  func(_ hooks.Worker, r *hooks.Request) { seenPath = r.Path },
		PostRequest: func(_ hooks.Worker, r *hooks.Request, resp *hooks.Response) { seenStatus = resp.Status },
	}

	req := &hooks.Request{Method: "GET", Path: "/health", Environ: map[string]string{"PATH_INFO": "/health"}}
	s.CallPreRequest(fakeWorker{}, req)
	s.CallPostRequest(fakeWorker{}, req, &hooks.Response{Status: 200, Bytes: 13})

	require.Equal(t, "/health", seenPath)
	require.Equal(t, 200, seenStatus)
}
