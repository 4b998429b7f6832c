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
	"os"
	"os/signal"
	"syscall"

	"github.com/nabbar/goicorn/glog"
)

const logFileFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY

// installSignals wires the six signals §4.3 assigns the worker onto state
// transitions and hook dispatch. It returns a stop function the caller
// defers to release the underlying os/signal channel.
func (w *Worker) installSignals() func() {
	ch := make(chan os.Signal, 8)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGUSR1, syscall.SIGWINCH, syscall.SIGABRT)

	go func() {
		for sig := range ch {
			w.handleSignal(sig)
		}
	}()

	return func() {
		signal.Stop(ch)
		close(ch)
	}
}

func (w *Worker) handleSignal(sig os.Signal) {
	switch sig {
	case syscall.SIGTERM:
		w.beginGracefulStop()
	case syscall.SIGQUIT, syscall.SIGINT:
		w.hk.CallWorkerInt(w)
		w.beginImmediateStop()
	case syscall.SIGABRT:
		w.hk.CallWorkerAbort(w)
		w.beginImmediateStop()
	case syscall.SIGUSR1:
		w.reopenLogs()
	case syscall.SIGWINCH:
		// The worker does not know whether the arbiter is daemonized:
		// WINCH starts a graceful stop in either case.
		w.beginGracefulStop()
	}
}

func (w *Worker) beginGracefulStop() {
	if w.state.CompareAndSwap(StateRunning, StateGracefulStopping) {
		w.closeStop()
	}
}

func (w *Worker) beginImmediateStop() {
	for {
		cur := w.state.Load()
		if cur == StateTerminating || cur == StateReaped {
			return
		}

		if w.state.CompareAndSwap(cur, StateTerminating) {
			w.closeStop()
			return
		}
	}
}

func (w *Worker) closeStop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
}

// reopenLogs re-dials the logger's backing output, used after logrotate
// moves the current log file aside. The worker keeps writing happily to
// the moved file otherwise, since it never reopens fds on its own.
func (w *Worker) reopenLogs() {
	if w.log == nil {
		return
	}

	if w.cfg.LogFile == "" {
		w.log.Entry(glog.InfoLevel, "received USR1, nothing to reopen (logging to stderr)").Log()
		return
	}

	f, err := os.OpenFile(w.cfg.LogFile, logFileFlags, 0644)
	if err != nil {
		w.log.Entry(glog.WarnLevel, "USR1 log reopen failed").ErrorAdd(err).Log()
		return
	}

	w.log.SetOutput(f)
	w.log.Entry(glog.InfoLevel, "reopened log file after USR1").Log()
}
