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

// Package arbiter implements the master process: it owns the listening
// sockets, forks and supervises the worker pool, translates signals into
// cohort-wide actions, and performs zero-downtime binary upgrades.
package arbiter

import (
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/nabbar/goicorn/heartbeat"
)

// WorkerState mirrors worker.State from the arbiter's point of view; it is
// a separate type since the arbiter only ever observes these transitions
// from the outside (exit codes, missed heartbeats), never drives them.
type WorkerState int

const (
	WorkerSpawning WorkerState = iota
	WorkerRunning
	WorkerStopping
	WorkerReapedPending
	WorkerReaped
)

// Record is one row of the worker table: everything the arbiter tracks
// about a single child process.
type Record struct {
	ID    int
	Pid   int
	Age   int
	State WorkerState

	TmpFile *heartbeat.File
	Pipe    *os.File // write end; closing it signals the worker to self-terminate
	Cmd     *exec.Cmd

	spawnedAt time.Time
}

// Table is the arbiter's worker bookkeeping, safe for concurrent access
// from the main loop and the SIGCHLD reaper.
type Table struct {
	mu   sync.Mutex
	rows map[int]*Record
}

func NewTable() *Table {
	return &Table{rows: make(map[int]*Record)}
}

func (t *Table) Add(r *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rows[r.ID] = r
}

func (t *Table) Remove(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.rows, id)
}

func (t *Table) Get(id int) (*Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.rows[id]
	return r, ok
}

// ByPid finds the record for a given OS pid, mapping it back to its
// worker_id.
func (t *Table) ByPid(pid int) (*Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, r := range t.rows {
		if r.Pid == pid {
			return r, true
		}
	}

	return nil, false
}

// Live returns every row not yet fully reaped, sorted by worker_id so
// callers that "prefer low worker_ids" (respawn target, TTOU stop-one) get
// a stable order.
func (t *Table) Live() []*Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Record, 0, len(t.rows))

	for _, r := range t.rows {
		if r.State != WorkerReaped {
			out = append(out, r)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// MinAge returns the lowest age among live workers. reload does not use
// it: it compares each previous worker's age with the new generation.
func (t *Table) MinAge() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	min := -1

	for _, r := range t.rows {
		if r.State == WorkerReaped {
			continue
		}

		if min == -1 || r.Age < min {
			min = r.Age
		}
	}

	return min
}

// NextFreeID returns the lowest worker_id with no live row, so a respawn
// after a TTOU/crash reuses the lowest available slot instead of growing
// ids without bound.
func (t *Table) NextFreeID() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id := 0; ; id++ {
		if r, ok := t.rows[id]; !ok || r.State == WorkerReaped {
			return id
		}
	}
}

func (t *Table) Count() int {
	return len(t.Live())
}

func (t *Table) SetState(id int, st WorkerState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r, ok := t.rows[id]; ok {
		r.State = st
	}
}

// hookWorker adapts a Record to hooks.Worker: Record's own fields are
// named ID/Pid/Age, so the method-shaped view hooks expects lives on this
// thin wrapper instead of on Record itself.
type hookWorker struct {
	r *Record
}

func (h hookWorker) ID() int  { return h.r.ID }
func (h hookWorker) Pid() int { return h.r.Pid }
func (h hookWorker) Age() int { return h.r.Age }
