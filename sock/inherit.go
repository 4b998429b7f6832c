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

package sock

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/nabbar/goicorn/gerrors"
)

// EnvFd is the environment variable a re-executed arbiter reads its
// inherited listening fds from, in the spirit of gunicorn's GUNICORN_FD.
const EnvFd = "GOICORN_FD"

// PrepareForExec duplicates every endpoint's fd so it survives exec (clears
// close-on-exec) and returns the comma-separated fd list to place in
// EnvFd, per §4.4's re-exec handoff.
func PrepareForExec(endpoints []*Endpoint) (string, []*os.File, error) {
	var (
		fds   []string
		files []*os.File
	)

	for _, e := range endpoints {
		f, err := e.File()
		if err != nil {
			return "", nil, gerrors.New(ErrorDup.Uint16(), ErrorDup.Message(), err)
		}

		dup, err := unix.Dup(int(f.Fd()))
		if err != nil {
			return "", nil, gerrors.New(ErrorDup.Uint16(), ErrorDup.Message(), err)
		}

		unix.CloseOnExec(dup)
		clearCloseOnExec(dup)

		nf := os.NewFile(uintptr(dup), e.Addr)
		files = append(files, nf)
		fds = append(fds, strconv.Itoa(dup))
	}

	return strings.Join(fds, ","), files, nil
}

func clearCloseOnExec(fd int) {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return
	}

	_, _ = unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags&^unix.FD_CLOEXEC)
}

// AdoptFromEnv parses EnvFd and rebuilds the Endpoint set a successor
// arbiter inherits, dropping (and reporting) any fd that fails Fstat
// instead of aborting the whole startup, per the partially-closed fd-list
// clarification.
func AdoptFromEnv(raw string, addrs []string) ([]*Endpoint, []error) {
	var (
		eps  []*Endpoint
		errs []error
	)

	fields := strings.Split(raw, ",")

	for i, f := range fields {
		if f == "" {
			continue
		}

		addr := "fd://" + f
		ep, err := adoptFd(addr)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if i < len(addrs) {
			ep.Addr = addrs[i]
		}

		eps = append(eps, ep)
	}

	return eps, errs
}
