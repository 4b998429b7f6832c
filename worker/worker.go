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
	"math/rand"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/nabbar/goicorn/glog"
	"github.com/nabbar/goicorn/heartbeat"
	"github.com/nabbar/goicorn/hooks"
	"github.com/nabbar/goicorn/httpparse"
	"github.com/nabbar/goicorn/wsgi"
)

// Config carries everything init_process needs that is not the listening
// sockets or hooks themselves: parser acceptance options, timing budgets
// and the CGI variables only the worker's own endpoint can supply.
type Config struct {
	ServerName string
	ServerPort string

	Timeout         time.Duration
	GracefulTimeout time.Duration
	KeepAliveWindow time.Duration

	MaxRequests       int
	MaxRequestsJitter int

	ParseOptions httpparse.Options

	// LogFile is the path the worker's glog.Logger was opened against;
	// USR1 reopens it in place after a logrotate-style rename. Empty
	// means the worker logs to stderr, which has nothing to reopen.
	LogFile string

	// ForwardedAllowIPs lists the peer addresses (or "*" for all) a
	// connection's proxy-forwarded headers are trusted from; it is
	// evaluated per connection against net.Conn.RemoteAddr, since
	// ParseOptions.TrustedPeer cannot be a static, worker-wide setting.
	ForwardedAllowIPs []string

	// MaxPipelinedKeepAlive bounds how many requests the sync worker will
	// serve on one connection before closing it regardless of keep-alive,
	// matching §4.3's "configurable small number of keep-alive requests".
	MaxPipelinedKeepAlive int
}

func (c Config) normalize() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}

	if c.GracefulTimeout <= 0 {
		c.GracefulTimeout = 30 * time.Second
	}

	if c.MaxPipelinedKeepAlive <= 0 {
		c.MaxPipelinedKeepAlive = 100
	}

	return c
}

// Worker is the per-process runtime entered after fork. It owns no
// listening socket: Listeners are inherited fds shared read-only across
// the whole pool, the OS load-balancing accept() among them.
type Worker struct {
	id  int
	pid int
	age int

	cfg Config
	app wsgi.Application
	hk  *hooks.Set
	log glog.Logger
	hb  *heartbeat.File

	listeners  []net.Listener
	parentPipe *os.File

	state          stateBox
	requestsServed atomic.Uint64
	maxRequests    int

	stopCh chan struct{}
	rng    *rand.Rand
}

// New builds a Worker in the spawning state. Run performs the rest of
// init_process (signal handlers, PRNG seed, post_worker_init hook) before
// entering the serve loop.
func New(id, age int, cfg Config, app wsgi.Application, hk *hooks.Set, log glog.Logger, hb *heartbeat.File, listeners []net.Listener, parentPipe *os.File) *Worker {
	w := &Worker{
		id:         id,
		pid:        os.Getpid(),
		age:        age,
		cfg:        cfg.normalize(),
		app:        app,
		hk:         hk,
		log:        log,
		hb:         hb,
		listeners:  listeners,
		parentPipe: parentPipe,
		stopCh:     make(chan struct{}),
	}

	w.state.Store(StateSpawning)

	return w
}

func (w *Worker) ID() int  { return w.id }
func (w *Worker) Pid() int { return w.pid }
func (w *Worker) Age() int { return w.age }

func (w *Worker) State() State {
	return w.state.Load()
}

// JitteredMaxRequests picks the request budget for this worker instance:
// MaxRequests plus a uniform random offset in [0, MaxRequestsJitter), so a
// whole cohort of workers spawned together does not recycle in lockstep.
func JitteredMaxRequests(rng *rand.Rand, base, jitter int) int {
	if base <= 0 {
		return 0
	}

	if jitter <= 0 {
		return base
	}

	return base + rng.Intn(jitter)
}
