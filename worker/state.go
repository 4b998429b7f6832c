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

// Package worker implements the per-process runtime a forked child enters
// after init_process: the synchronous serve loop, signal handling, request
// dispatch through httpparse and wsgi, and the heartbeat the arbiter polls.
package worker

import "sync/atomic"

// State is one point on the worker's lifecycle.
//
//	spawning -> running -> graceful-stopping -> terminating -> reaped
//	running -> terminating directly on INT/QUIT/ABRT
type State uint32

const (
	StateSpawning State = iota
	StateRunning
	StateGracefulStopping
	StateTerminating
	StateReaped
)

func (s State) String() string {
	switch s {
	case StateSpawning:
		return "spawning"
	case StateRunning:
		return "running"
	case StateGracefulStopping:
		return "graceful-stopping"
	case StateTerminating:
		return "terminating"
	case StateReaped:
		return "reaped"
	default:
		return "unknown"
	}
}

// stateBox is an atomic holder for State, letting the signal-handling
// goroutine and the serve loop goroutine read/write it without a mutex.
type stateBox struct {
	v atomic.Uint32
}

func (b *stateBox) Load() State {
	return State(b.v.Load())
}

func (b *stateBox) Store(s State) {
	b.v.Store(uint32(s))
}

// CompareAndSwap transitions the box from from to to, reporting whether the
// transition was taken. Used to make the ABRT/INT/QUIT/TERM races against
// a worker that already reached terminating a no-op instead of clobbering
// a more advanced state with an earlier one.
func (b *stateBox) CompareAndSwap(from, to State) bool {
	return b.v.CompareAndSwap(uint32(from), uint32(to))
}
