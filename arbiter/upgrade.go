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
	"fmt"
	"os"
	"os/exec"

	"github.com/nabbar/goicorn/gerrors"
	"github.com/nabbar/goicorn/glog"
	"github.com/nabbar/goicorn/sock"
)

// binaryUpgrade is the USR2 sequence of §4.5: rename the pid-file aside,
// duplicate the listening fds past exec, invoke pre_exec, then fork+exec a
// successor that adopts the sockets as a new arbiter generation. The
// correlation id is logged by this arbiter only; it is not passed to the
// successor, whose own logs do not carry it.
func (a *Arbiter) binaryUpgrade() {
	id := a.upgradeCorrelationID()
	a.logf(glog.InfoLevel, "binary upgrade starting, correlation id "+id, nil)

	if a.pidFile != "" {
		if err := os.Rename(a.pidFile, a.pidFile+".2"); err != nil {
			a.logf(glog.ErrorLevel, "could not rename pid file ahead of upgrade", err)
			return
		}
	}

	fdList, files, err := sock.PrepareForExec(a.endpoints)
	if err != nil {
		a.logf(glog.ErrorLevel, "could not duplicate listening fds for upgrade", err)
		a.rollbackPidFileRename()
		return
	}

	a.opts.Hooks.CallPreExec(a)

	cmd := exec.Command(a.opts.BinaryPath, a.opts.Args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = files
	cmd.Env = append(os.Environ(), sock.EnvFd+"="+fdList)

	if err := cmd.Start(); err != nil {
		a.logf(glog.ErrorLevel, "upgrade re-exec failed, old arbiter keeps serving", gerrors.New(ErrorUpgradeExec.Uint16(), ErrorUpgradeExec.Message(), err))
		a.rollbackPidFileRename()
		return
	}

	a.logf(glog.InfoLevel, fmt.Sprintf("successor arbiter started, pid %d", cmd.Process.Pid), nil)

	// The old arbiter keeps serving its existing workers. An operator
	// sends it WINCH+TERM (or HUP to roll back) once satisfied the
	// successor is healthy; see rollback below.
	go func() {
		_ = cmd.Wait()
	}()
}

// rollbackPidFileRename restores the original pid-file name after a failed
// upgrade attempt, so the old arbiter is still the one findable by path.
func (a *Arbiter) rollbackPidFileRename() {
	if a.pidFile == "" {
		return
	}

	_ = os.Rename(a.pidFile+".2", a.pidFile)
}
