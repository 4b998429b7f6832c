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
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nabbar/goicorn/gerrors"
	"github.com/nabbar/goicorn/heartbeat"
)

// WorkerListenFdBase is the fd number of the first inherited listener in a
// spawned worker: fd 3 is the parent-liveness pipe, fd 4 is the heartbeat
// file, and every fd from WorkerListenFdBase onward is one bound endpoint,
// in the same order as Arbiter.endpoints.
const WorkerListenFdBase = 5

// Go cannot safely fork() a running multi-threaded runtime the way
// gunicorn's arbiter forks a single-threaded CPython process; each worker
// is instead a re-exec of this same binary, marked by WorkerIDEnv, with
// the listening sockets and its heartbeat file passed as inherited fds via
// Cmd.ExtraFiles. This mirrors the process-per-worker model exactly; only
// the OS-level mechanism (exec instead of fork) differs.
func (a *Arbiter) spawnWorker(id, age int) error {
	hb, err := heartbeat.Create(a.cfg.WorkerTmpDir)
	if err != nil {
		return gerrors.New(ErrorSpawnWorker.Uint16(), ErrorSpawnWorker.Message(), err)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		_ = hb.Close()
		return gerrors.New(ErrorSpawnWorker.Uint16(), ErrorSpawnWorker.Message(), err)
	}

	cmd := exec.Command(a.opts.BinaryPath, a.opts.Args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = nil

	extra := []*os.File{pr, os.NewFile(hb.Fd(), "heartbeat")}
	for _, e := range a.endpoints {
		f, ferr := e.File()
		if ferr != nil {
			_ = pr.Close()
			_ = pw.Close()
			_ = hb.Close()
			return gerrors.New(ErrorSpawnWorker.Uint16(), ErrorSpawnWorker.Message(), ferr)
		}

		extra = append(extra, f)
	}

	cmd.ExtraFiles = extra

	env := append(os.Environ(),
		WorkerIDEnv+"="+strconv.Itoa(id),
		WorkerAgeEnv+"="+strconv.Itoa(age),
		WorkerPipeFdEnv+"="+strconv.Itoa(3),
		WorkerHeartbeatEnv+"="+strconv.Itoa(4),
		WorkerFdCountEnv+"="+strconv.Itoa(len(a.endpoints)),
	)
	cmd.Env = env

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		_ = hb.Close()
		return gerrors.New(ErrorSpawnWorker.Uint16(), ErrorSpawnWorker.Message(), err)
	}

	// The child has its own copies of pr/hb after fork+exec; the arbiter
	// only needs to keep the write end of the pipe (its liveness signal to
	// the child) and the heartbeat read handle open.
	_ = pr.Close()

	rec := &Record{
		ID:    id,
		Pid:   cmd.Process.Pid,
		Age:   age,
		State: WorkerRunning,

		TmpFile: hb,
		Pipe:    pw,
		Cmd:     cmd,
	}

	a.table.Add(rec)
	a.opts.Hooks.CallPostFork(a, hookWorker{rec})

	go a.waitWorker(rec)

	return nil
}

// waitWorker blocks on cmd.Wait(), the Go-idiomatic replacement for a
// manual waitpid(-1, WNOHANG) polling loop: the runtime already reaps via
// wait4 internally, so a goroutine per child composes more safely than a
// second, racing waitpid loop would.
func (a *Arbiter) waitWorker(rec *Record) {
	_ = rec.Cmd.Wait()

	_ = rec.Pipe.Close()
	_ = rec.TmpFile.Close()

	a.table.SetState(rec.ID, WorkerReaped)
	a.opts.Hooks.CallChildExit(a, hookWorker{rec})
	a.opts.Hooks.CallWorkerExit(a, hookWorker{rec})
}

// respawnToTarget is main-loop step 4: bring the live count up to target,
// assigning the lowest free worker_ids first.
func (a *Arbiter) respawnToTarget() error {
	target := int(a.target.Load())
	age := int(a.generation.Load())

	spawn := a.spawnWorker
	if a.spawnFn != nil {
		spawn = a.spawnFn
	}

	for a.table.Count() < target {
		id := a.table.NextFreeID()

		if err := spawn(id, age); err != nil {
			return err
		}
	}

	return nil
}

func heartbeatExpired(mtime time.Time, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}

	return time.Since(mtime) > timeout
}

func killPid(pid int) error {
	return unix.Kill(pid, syscall.SIGKILL)
}

func termPid(pid int) error {
	return unix.Kill(pid, syscall.SIGTERM)
}

func signalPid(pid int, sig syscall.Signal) error {
	return unix.Kill(pid, sig)
}
