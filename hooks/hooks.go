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

// Package hooks dispatches the fixed set of lifecycle points a deployment
// may wire a callable into. Each point has its own fixed-arity function
// type; there is no reflective name-to-callable lookup, so a typo in a
// caller's field name is a compile error rather than a silent no-op.
package hooks

// Server is the subset of arbiter state a hook may read. It is satisfied
// by the arbiter's own type; hooks never get a handle letting them mutate
// the worker table directly.
type Server interface {
	Workers() int
	Pid() int
	BindAddrs() []string
}

// Worker is the subset of per-worker state a hook may read.
type Worker interface {
	ID() int
	Pid() int
	Age() int
}

// Request is the minimal per-request view exposed to pre_request and
// post_request; full header access goes through the environ map, in
// keeping with the CGI-style contract the wsgi package builds.
type Request struct {
	Method  string
	Path    string
	Environ map[string]string
}

// Response is the minimal per-response view exposed to post_request.
type Response struct {
	Status int
	Bytes  int64
}

type (
	OnStarting       func(s Server)
	OnReload         func(s Server)
	WhenReady        func(s Server)
	PreFork          func(s Server, w Worker)
	PostFork         func(s Server, w Worker)
	PostWorkerInit   func(w Worker)
	WorkerInt        func(w Worker)
	WorkerAbort      func(w Worker)
	PreExec          func(s Server)
	PreRequest       func(w Worker, r *Request)
	PostRequest      func(w Worker, r *Request, resp *Response)
	ChildExit        func(s Server, w Worker)
	WorkerExit       func(s Server, w Worker)
	NWorkersChanged  func(s Server, newVal, oldVal int)
	OnExit           func(s Server)
)

// Set holds one optional callable per lifecycle point. A nil field is
// simply skipped by its corresponding Call* method; there is no default
// behavior to preserve since gunicorn's own defaults are no-ops.
type Set struct {
	OnStarting      OnStarting
	OnReload        OnReload
	WhenReady       WhenReady
	PreFork         PreFork
	PostFork        PostFork
	PostWorkerInit  PostWorkerInit
	WorkerInt       WorkerInt
	WorkerAbort     WorkerAbort
	PreExec         PreExec
	PreRequest      PreRequest
	PostRequest     PostRequest
	ChildExit       ChildExit
	WorkerExit      WorkerExit
	NWorkersChanged NWorkersChanged
	OnExit          OnExit
}

func (s *Set) CallOnStarting(srv Server) {
	if s != nil && s.OnStarting != nil {
		s.OnStarting(srv)
	}
}

func (s *Set) CallOnReload(srv Server) {
	if s != nil && s.OnReload != nil {
		s.OnReload(srv)
	}
}

func (s *Set) CallWhenReady(srv Server) {
	if s != nil && s.WhenReady != nil {
		s.WhenReady(srv)
	}
}

func (s *Set) CallPreFork(srv Server, w Worker) {
	if s != nil && s.PreFork != nil {
		s.PreFork(srv, w)
	}
}

func (s *Set) CallPostFork(srv Server, w Worker) {
	if s != nil && s.PostFork != nil {
		s.PostFork(srv, w)
	}
}

func (s *Set) CallPostWorkerInit(w Worker) {
	if s != nil && s.PostWorkerInit != nil {
		s.PostWorkerInit(w)
	}
}

func (s *Set) CallWorkerInt(w Worker) {
	if s != nil && s.WorkerInt != nil {
		s.WorkerInt(w)
	}
}

func (s *Set) CallWorkerAbort(w Worker) {
	if s != nil && s.WorkerAbort != nil {
		s.WorkerAbort(w)
	}
}

func (s *Set) CallPreExec(srv Server) {
	if s != nil && s.PreExec != nil {
		s.PreExec(srv)
	}
}

func (s *Set) CallPreRequest(w Worker, r *Request) {
	if s != nil && s.PreRequest != nil {
		s.PreRequest(w, r)
	}
}

func (s *Set) CallPostRequest(w Worker, r *Request, resp *Response) {
	if s != nil && s.PostRequest != nil {
		s.PostRequest(w, r, resp)
	}
}

func (s *Set) CallChildExit(srv Server, w Worker) {
	if s != nil && s.ChildExit != nil {
		s.ChildExit(srv, w)
	}
}

func (s *Set) CallWorkerExit(srv Server, w Worker) {
	if s != nil && s.WorkerExit != nil {
		s.WorkerExit(srv, w)
	}
}

func (s *Set) CallNWorkersChanged(srv Server, newVal, oldVal int) {
	if s != nil && s.NWorkersChanged != nil {
		s.NWorkersChanged(srv, newVal, oldVal)
	}
}

func (s *Set) CallOnExit(srv Server) {
	if s != nil && s.OnExit != nil {
		s.OnExit(srv)
	}
}
