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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nabbar/goicorn/gconfig"
	"github.com/nabbar/goicorn/hooks"
)

func newTestArbiter() *Arbiter {
	cfg := gconfig.Default()
	cfg.Workers = 2

	return New(Options{
		Config: cfg,
		Hooks:  &hooks.Set{},
	})
}

func TestScaleByIncrementsAndDecrementsTarget(t *testing.T) {
	a := newTestArbiter()

	a.scaleBy(1)
	require.Equal(t, int32(3), a.target.Load())

	a.scaleBy(-1)
	require.Equal(t, int32(2), a.target.Load())
}

func TestScaleByNeverGoesNegative(t *testing.T) {
	a := newTestArbiter()
	a.target.Store(0)

	a.scaleBy(-1)
	require.Equal(t, int32(0), a.target.Load())
}

func TestScaleByFiresNWorkersChangedHook(t *testing.T) {
	a := newTestArbiter()

	var gotNew, gotOld int
	a.opts.Hooks.NWorkersChanged = func(_ hooks.Server, newVal, oldVal int) {
		gotNew, gotOld = newVal, oldVal
	}

	a.scaleBy(1)
	require.Equal(t, 3, gotNew)
	require.Equal(t, 2, gotOld)
}

func TestWinchIsANoOpWhenNotDaemonized(t *testing.T) {
	a := newTestArbiter()
	a.daemon = false

	a.table.Add(&Record{ID: 0, Pid: 1, State: WorkerRunning})
	a.winch()

	r, _ := a.table.Get(0)
	require.Equal(t, WorkerRunning, r.State)
}

func TestBindAddrsReflectsBoundEndpoints(t *testing.T) {
	a := newTestArbiter()
	require.Empty(t, a.BindAddrs())
}

func TestWorkersReflectsLiveTableCount(t *testing.T) {
	a := newTestArbiter()
	require.Equal(t, 0, a.Workers())

	a.table.Add(&Record{ID: 0, State: WorkerRunning})
	require.Equal(t, 1, a.Workers())
}

func TestReloadSpawnsAFullNewCohortBeforeStoppingThePrevious(t *testing.T) {
	a := newTestArbiter()
	a.target.Store(2)

	a.table.Add(&Record{ID: 0, Pid: 100, Age: 0, State: WorkerRunning})
	a.table.Add(&Record{ID: 1, Pid: 101, Age: 0, State: WorkerRunning})

	var spawned []int
	a.spawnFn = func(id, age int) error {
		spawned = append(spawned, id)
		a.table.Add(&Record{ID: id, Pid: 1000 + id, Age: age, State: WorkerRunning})
		return nil
	}

	a.reload()

	require.Len(t, spawned, 2, "a full new cohort is spawned before the previous one is asked to stop")
	require.Equal(t, int32(2), a.target.Load(), "target is restored once the new cohort exists")

	for _, id := range []int{0, 1} {
		r, ok := a.table.Get(id)
		require.True(t, ok)
		require.Equal(t, WorkerStopping, r.State, "the previous-generation worker is asked to stop")
	}

	for _, id := range spawned {
		r, ok := a.table.Get(id)
		require.True(t, ok)
		require.Equal(t, WorkerRunning, r.State, "the new-generation worker is left running, not stopped")
	}
}

func TestReloadWithNoPreviousWorkersJustFillsTheSteadyTarget(t *testing.T) {
	a := newTestArbiter()
	a.target.Store(2)

	var spawned []int
	a.spawnFn = func(id, age int) error {
		spawned = append(spawned, id)
		a.table.Add(&Record{ID: id, Pid: 1000 + id, Age: age, State: WorkerRunning})
		return nil
	}

	a.reload()

	require.Len(t, spawned, 2, "with no previous cohort to cover, reload just fills the steady-state target")
	require.Equal(t, int32(2), a.target.Load())
}
