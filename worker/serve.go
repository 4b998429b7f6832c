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
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"time"

	"github.com/nabbar/goicorn/gerrors"
	"github.com/nabbar/goicorn/glog"
)

// deadliner is satisfied by *net.TCPListener and *net.UnixListener, the
// two concrete types Bind ever returns; net.Listener itself carries no
// deadline method.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// Run performs the remainder of init_process (PRNG seed, signal handlers,
// post_worker_init hook) and then enters the synchronous serve loop until the
// worker reaches terminating.
func (w *Worker) Run(ctx context.Context) error {
	w.rng = rand.New(rand.NewSource(time.Now().UnixNano() + int64(w.pid)))
	w.maxRequests = JitteredMaxRequests(w.rng, w.cfg.MaxRequests, w.cfg.MaxRequestsJitter)

	stopSignals := w.installSignals()
	defer stopSignals()

	w.hk.CallPostWorkerInit(w)
	w.state.Store(StateRunning)

	conns := make(chan net.Conn, len(w.listeners))
	acceptDone := make(chan struct{})

	for _, l := range w.listeners {
		go w.acceptLoop(l, conns, acceptDone)
	}

	parentGone := make(chan struct{})
	go w.watchParentPipe(parentGone)

	budget := w.cfg.Timeout / 2
	if budget <= 0 {
		budget = 15 * time.Second
	}

	defer w.state.Store(StateReaped)

	for {
		if w.hb != nil {
			_ = w.hb.Notify()
		}

		if st := w.state.Load(); st == StateTerminating {
			return nil
		}

		select {
		case <-ctx.Done():
			w.state.Store(StateTerminating)
			return ctx.Err()

		case <-parentGone:
			w.state.Store(StateTerminating)
			return gerrors.New(ErrorParentPipeClosed.Uint16(), ErrorParentPipeClosed.Message())

		case <-w.stopCh:
			if w.state.Load() == StateGracefulStopping {
				// Current connection (if any) already finished inline in
				// handleConn; nothing in flight to drain further.
				w.state.Store(StateTerminating)
			}

			return nil

		case conn := <-conns:
			w.handleConn(ctx, conn)

			if w.maxRequests > 0 && w.requestsServed.Load() >= uint64(w.maxRequests) {
				w.state.Store(StateTerminating)
				return nil
			}

			if w.state.Load() == StateGracefulStopping {
				w.state.Store(StateTerminating)
				return nil
			}

		case <-time.After(budget):
			// Budget elapsed with nothing ready; loop back to notify again.
		}
	}
}

// acceptLoop repeatedly Accepts on one listener, giving up its deadline
// every budget interval so the main loop's select always gets a chance to
// observe a stop signal even under a quiet listener.
func (w *Worker) acceptLoop(l net.Listener, out chan<- net.Conn, done <-chan struct{}) {
	budget := w.cfg.Timeout / 2
	if budget <= 0 {
		budget = 15 * time.Second
	}

	dl, hasDeadline := l.(deadliner)

	for {
		select {
		case <-done:
			return
		default:
		}

		if hasDeadline {
			_ = dl.SetDeadline(time.Now().Add(budget))
		}

		conn, err := l.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}

			return
		}

		select {
		case out <- conn:
		case <-done:
			_ = conn.Close()
			return
		}
	}
}

// watchParentPipe blocks on a one-byte read of the arbiter-held pipe; the
// read returns (with EOF or any error) exactly when the arbiter closes its
// end, which is how the worker detects it has been orphaned.
func (w *Worker) watchParentPipe(done chan<- struct{}) {
	if w.parentPipe == nil {
		return
	}

	buf := make([]byte, 1)
	_, _ = w.parentPipe.Read(buf)
	close(done)
}

func (w *Worker) errorLog() io.Writer {
	return entryWriter{log: w.log}
}

type entryWriter struct {
	log glog.Logger
}

func (e entryWriter) Write(p []byte) (int, error) {
	if e.log != nil {
		e.log.Entry(glog.ErrorLevel, string(p)).Log()
	}

	return len(p), nil
}
