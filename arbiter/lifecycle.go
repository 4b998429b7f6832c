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

package arbiter

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/nabbar/goicorn/glog"
)

// reload is the HUP action: a new generation of workers is spawned, and
// only once that full cohort is running is the previous one (every worker
// whose age is below the new generation's) asked to stop gracefully.
// §4.5's cohort management, and Scenario S5's "a new worker is already
// serving fresh connections" before the old cohort is told to stop.
func (a *Arbiter) reload() {
	a.opts.Hooks.CallOnReload(a)

	previous := a.table.Live()
	newAge := a.generation.Add(1)

	// The previous cohort is still live and counted by Count(), so
	// bumping the target by its size forces respawnToTarget to add a
	// full new cohort on top of it instead of seeing the target already
	// met and spawning nothing.
	steadyTarget := int(a.target.Load())
	a.target.Store(int32(steadyTarget + len(previous)))

	if err := a.respawnToTarget(); err != nil {
		a.logf(glog.ErrorLevel, "reload respawn failed", err)
	}

	a.target.Store(int32(steadyTarget))

	for _, r := range previous {
		if r.Age < int(newAge) {
			_ = termPid(r.Pid)
			a.table.SetState(r.ID, WorkerStopping)
		}
	}
}

// quickShutdown is TERM/INT: TERM every worker, wait up to
// graceful_timeout, then KILL stragglers.
func (a *Arbiter) quickShutdown() {
	a.exiting.Store(true)
	a.target.Store(0)

	live := a.table.Live()
	for _, r := range live {
		_ = termPid(r.Pid)
	}

	if err := a.waitForDrain(a.cfg.GracefulTimeout.AsDuration()); err != nil {
		a.logf(glog.WarnLevel, "stragglers remained after graceful_timeout, sending KILL", err)

		for _, r := range a.table.Live() {
			_ = killPid(r.Pid)
		}
	}
}

// gracefulShutdown is QUIT: TERM every worker, honor graceful_timeout, and
// exit without an explicit KILL; any straggler is orphaned when the
// arbiter exits and self-terminates on its parent-pipe closing.
func (a *Arbiter) gracefulShutdown() {
	a.exiting.Store(true)
	a.target.Store(0)

	for _, r := range a.table.Live() {
		_ = termPid(r.Pid)
	}

	if err := a.waitForDrain(a.cfg.GracefulTimeout.AsDuration()); err != nil {
		a.logf(glog.WarnLevel, "graceful_timeout elapsed with workers still live, exiting anyway", err)
	}
}

// winch is WINCH: gracefully stop every worker but keep the arbiter alive,
// only when daemonized (a foreground arbiter ignores WINCH entirely).
func (a *Arbiter) winch() {
	if !a.daemon {
		return
	}

	for _, r := range a.table.Live() {
		_ = termPid(r.Pid)
		a.table.SetState(r.ID, WorkerStopping)
	}
}

// scaleBy implements TTIN (+1) and TTOU (-1): adjust the target count and,
// for a decrement, gracefully stop exactly one worker (the highest
// worker_id, so low ids stay stable across repeated scale-downs).
func (a *Arbiter) scaleBy(delta int) {
	old := int(a.target.Load())
	next := old + delta

	if next < 0 {
		next = 0
	}

	a.target.Store(int32(next))
	a.opts.Hooks.CallNWorkersChanged(a, next, old)

	if delta < 0 {
		live := a.table.Live()
		if len(live) == 0 {
			return
		}

		victim := live[len(live)-1]
		_ = termPid(victim.Pid)
		a.table.SetState(victim.ID, WorkerStopping)
	}
}

// reopenLogsAndForward is USR1: reopen the arbiter's own log output and
// forward USR1 to every live worker so each reopens its own.
func (a *Arbiter) reopenLogsAndForward() {
	a.reopenOwnLog()

	for _, r := range a.table.Live() {
		_ = signalPid(r.Pid, syscall.SIGUSR1)
	}
}

// reopenOwnLog re-dials the arbiter's own log file, used after logrotate
// moves the current one aside. A configuration logging to stderr (no
// LogFile set) has nothing to reopen.
func (a *Arbiter) reopenOwnLog() {
	if a.opts.Log == nil || a.cfg.LogFile == "" {
		return
	}

	f, err := os.OpenFile(a.cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		a.logf(glog.WarnLevel, "USR1 log reopen failed", err)
		return
	}

	a.opts.Log.SetOutput(f)
}

// reapExited drains the worker table of rows the Wait goroutine already
// marked WorkerReaped. The real reaping (cmd.Wait) and the child_exit and
// worker_exit hooks already happened in waitWorker; this only prunes the
// table so reaped rows do not accumulate.
func (a *Arbiter) reapExited() {
	a.table.mu.Lock()
	defer a.table.mu.Unlock()

	for id, r := range a.table.rows {
		if r.State == WorkerReaped {
			delete(a.table.rows, id)
		}
	}
}

// waitForDrain waits until no live row is left in the table or timeout
// elapses, using an errgroup to fan out one goroutine per currently-live
// row; each polls that row's table state every 50ms until it is reaped or
// gone.
func (a *Arbiter) waitForDrain(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	var merr error

	for _, r := range a.table.Live() {
		r := r

		g.Go(func() error {
			done := make(chan struct{})

			go func() {
				for {
					rec, ok := a.table.Get(r.ID)
					if !ok || rec.State == WorkerReaped {
						break
					}

					select {
					case <-gctx.Done():
						close(done)
						return
					case <-time.After(50 * time.Millisecond):
					}
				}

				close(done)
			}()

			<-done
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		merr = multierror.Append(merr, err)
	}

	if a.table.Count() > 0 {
		return multierror.Append(merr, errGracefulTimeout).ErrorOrNil()
	}

	return nil
}

var errGracefulTimeout = context.DeadlineExceeded
