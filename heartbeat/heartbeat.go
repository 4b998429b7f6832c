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

// Package heartbeat implements the worker liveness surface: an anonymous
// tmp file whose mtime the worker bumps on every serve-loop iteration and
// the arbiter polls without ever writing to it.
package heartbeat

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nabbar/goicorn/gerrors"
)

// File is the arbiter-side handle created before fork and the worker-side
// handle inherited across it; both wrap the same open fd.
type File struct {
	f *os.File
}

// Create opens an anonymous heartbeat file under dir (WorkerTmpDir) and
// immediately unlinks it: the inode survives as long as some process keeps
// the fd open, but no directory entry is left behind to clean up.
func Create(dir string) (*File, error) {
	if dir == "" {
		dir = os.TempDir()
	}

	f, err := os.CreateTemp(dir, "goicorn-worker-*.tmp")
	if err != nil {
		return nil, gerrors.New(ErrorCreateFile.Uint16(), ErrorCreateFile.Message(), err)
	}

	if err := os.Remove(f.Name()); err != nil {
		_ = f.Close()
		return nil, gerrors.New(ErrorCreateFile.Uint16(), ErrorCreateFile.Message(), err)
	}

	return &File{f: f}, nil
}

// FromFd adopts an already-open fd inherited across fork, used by the
// worker side which never calls Create itself.
func FromFd(fd uintptr) *File {
	return &File{f: os.NewFile(fd, "heartbeat")}
}

// Fd returns the underlying file descriptor, passed to the child via
// ExtraFiles when the arbiter forks a worker.
func (h *File) Fd() uintptr {
	return h.f.Fd()
}

// Notify bumps the inode's mtime. It prefers a cheap utimes(2) call over
// a write, since the payload is irrelevant and only the metadata change is
// observed by the arbiter's stat-based poll.
func (h *File) Notify() error {
	now := time.Now()
	ts := []unix.Timespec{
		unix.NsecToTimespec(now.UnixNano()),
		unix.NsecToTimespec(now.UnixNano()),
	}

	if err := unix.UtimesNanoAt(unix.AT_FDCWD, fmt.Sprintf("/proc/self/fd/%d", h.f.Fd()), ts, 0); err != nil {
		// /proc is not always mounted (containers, BSD); fall back to a
		// one-byte write at offset 0, which bumps mtime on every POSIX
		// filesystem without needing a path at all.
		if _, werr := h.f.WriteAt([]byte{0}, 0); werr != nil {
			return gerrors.New(ErrorTouchFile.Uint16(), ErrorTouchFile.Message(), err, werr)
		}
	}

	return nil
}

// MTime reads the inode's current modification time; called only by the
// arbiter.
func (h *File) MTime() (time.Time, error) {
	fi, err := h.f.Stat()
	if err != nil {
		return time.Time{}, gerrors.New(ErrorStatFile.Uint16(), ErrorStatFile.Message(), err)
	}

	return fi.ModTime(), nil
}

// Close releases the fd; the inode is reclaimed once every process holding
// it has done the same.
func (h *File) Close() error {
	return h.f.Close()
}

// Expired reports whether MTime is older than timeout. The arbiter's
// per-tick scan uses its own heartbeatExpired, which also treats a
// non-positive timeout as disabled.
func Expired(mtime time.Time, timeout time.Duration) bool {
	return time.Since(mtime) > timeout
}
