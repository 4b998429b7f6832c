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
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nabbar/goicorn/gconfig"
	"github.com/nabbar/goicorn/gerrors"
	"github.com/nabbar/goicorn/glog"
	"github.com/nabbar/goicorn/hooks"
	"github.com/nabbar/goicorn/sock"
)

// Options gathers everything Startup needs beyond what it discovers on its
// own (bound sockets, worker table).
type Options struct {
	Config *gconfig.Config
	Hooks  *hooks.Set
	Log    glog.Logger

	// BinaryPath and Args describe how to re-invoke this same program as a
	// worker or, on USR2, as the next arbiter generation. WorkerIDEnv is
	// set in a worker child's environment so main() knows to enter
	// worker.Run instead of Startup.
	BinaryPath string
	Args       []string
}

// Arbiter is the master process: it owns the listening sockets, the worker
// table, and the signal-driven state machine of §4.5.
type Arbiter struct {
	opts Options
	cfg  *gconfig.Config

	table     *Table
	endpoints []*sock.Endpoint

	target     atomic.Int32
	generation atomic.Int32

	pidFile string
	daemon  bool

	exiting atomic.Bool
	doneCh  chan struct{}

	upgradeID string

	// spawnFn overrides spawnWorker when set, so tests can exercise
	// respawnToTarget's counting without forking a real child process.
	spawnFn func(id, age int) error
}

// WorkerIDEnv, set in a spawned child's environment, tells main() to run
// the worker runtime instead of Startup. WorkerAgeEnv carries the worker's
// generation; WorkerFdCountEnv is the number of inherited listener fds;
// WorkerPipeFdEnv names the read-end fd of the parent-liveness pipe;
// WorkerHeartbeatEnv names the heartbeat file fd.
const (
	WorkerIDEnv        = "GOICORN_WORKER_ID"
	WorkerAgeEnv       = "GOICORN_WORKER_AGE"
	WorkerFdCountEnv   = "GOICORN_WORKER_FD_COUNT"
	WorkerPipeFdEnv    = "GOICORN_WORKER_PIPE_FD"
	WorkerHeartbeatEnv = "GOICORN_WORKER_HB_FD"
)

// New builds an Arbiter ready for Startup. It does not touch the network
// or the filesystem; call Startup for that.
func New(opts Options) *Arbiter {
	a := &Arbiter{
		opts:    opts,
		cfg:     opts.Config,
		table:   NewTable(),
		pidFile: opts.Config.PidFile,
		daemon:  opts.Config.Daemon,
		doneCh:  make(chan struct{}),
	}

	a.target.Store(int32(opts.Config.Workers))

	return a
}

func (a *Arbiter) Workers() int { return a.table.Count() }
func (a *Arbiter) Pid() int     { return os.Getpid() }

func (a *Arbiter) BindAddrs() []string {
	addrs := make([]string, 0, len(a.endpoints))
	for _, e := range a.endpoints {
		addrs = append(addrs, e.Addr)
	}

	return addrs
}

func (a *Arbiter) logf(level glog.Level, msg string, err error) {
	if a.opts.Log == nil {
		return
	}

	e := a.opts.Log.Entry(level, msg)
	if err != nil {
		e = e.ErrorAdd(err)
	}

	e.Log()
}

// Startup binds or adopts the listeners, runs on_starting, writes the
// pid-file, spawns the initial workers and runs when_ready; the caller
// then drives the main loop by calling Run. Signal handlers are installed
// by Run, so they are not yet in place when when_ready fires.
func (a *Arbiter) Startup(ctx context.Context) error {
	eps, err := a.bindOrAdopt()
	if err != nil {
		return err
	}

	a.endpoints = eps

	a.opts.Hooks.CallOnStarting(a)

	if a.pidFile != "" {
		if err := a.writePidFile(a.pidFile); err != nil {
			return err
		}
	}

	if err := a.respawnToTarget(); err != nil {
		return err
	}

	a.opts.Hooks.CallWhenReady(a)

	return nil
}

// bindOrAdopt binds every configured address fresh, unless GOICORN_FD is
// present in the environment (this process is a USR2 successor), in which
// case it adopts the inherited fds instead of rebinding them.
func (a *Arbiter) bindOrAdopt() ([]*sock.Endpoint, error) {
	if raw := os.Getenv(sock.EnvFd); raw != "" {
		eps, errs := sock.AdoptFromEnv(raw, a.cfg.Bind)
		for _, e := range errs {
			a.logf(glog.WarnLevel, "dropped an inherited fd that failed validation", e)
		}

		missing := len(a.cfg.Bind) - len(eps)
		if missing > 0 {
			rest, err := a.bindFresh(a.cfg.Bind[len(eps):])
			if err != nil {
				return nil, err
			}

			eps = append(eps, rest...)
		}

		return eps, nil
	}

	return a.bindFresh(a.cfg.Bind)
}

func (a *Arbiter) bindFresh(addrs []string) ([]*sock.Endpoint, error) {
	eps := make([]*sock.Endpoint, 0, len(addrs))

	for _, addr := range addrs {
		ep, err := sock.Bind(addr, sock.Options{ReusePort: true})
		if err != nil {
			for _, done := range eps {
				_ = done.Close()
			}

			return nil, err
		}

		eps = append(eps, ep)
	}

	return eps, nil
}

func (a *Arbiter) writePidFile(path string) error {
	content := []byte(strconv.Itoa(os.Getpid()) + "\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		return gerrors.New(ErrorWritePidFile.Uint16(), ErrorWritePidFile.Message(), err)
	}

	return nil
}

// Run is the main loop of §4.5: drain the signal channel, reap children,
// scan heartbeats, respawn to target, parked on a 1-second tick.
func (a *Arbiter) Run(ctx context.Context) error {
	ch := a.installSignals()
	defer a.stopSignals(ch)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.quickShutdown()
			return ctx.Err()

		case sig := <-ch:
			a.dispatchSignal(sig)

		case <-ticker.C:
			a.reapExited()
			a.scanHeartbeats()

			if !a.exiting.Load() {
				if err := a.respawnToTarget(); err != nil {
					a.logf(glog.ErrorLevel, "respawn failed", err)
				}
			}
		}

		if a.exiting.Load() && a.table.Count() == 0 {
			a.opts.Hooks.CallOnExit(a)
			return nil
		}
	}
}

// scanHeartbeats is main-loop step 3: kill any worker whose tmp-file mtime
// is older than timeout.
func (a *Arbiter) scanHeartbeats() {
	for _, r := range a.table.Live() {
		if r.TmpFile == nil {
			continue
		}

		mtime, err := r.TmpFile.MTime()
		if err != nil {
			continue
		}

		if heartbeatExpired(mtime, a.cfg.Timeout.AsDuration()) {
			a.logf(glog.WarnLevel, fmt.Sprintf("worker %d missed its heartbeat, sending KILL", r.ID), nil)
			_ = killPid(r.Pid)
			a.table.SetState(r.ID, WorkerReapedPending)
		}
	}
}

func (a *Arbiter) upgradeCorrelationID() string {
	if a.upgradeID == "" {
		a.upgradeID = uuid.NewString()
	}

	return a.upgradeID
}
