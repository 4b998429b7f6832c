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
	"os/signal"
	"syscall"
)

// signals is every signal the arbiter's startup sequence installs a
// handler for, per §4.5 step 5.
var signals = []os.Signal{
	syscall.SIGHUP,
	syscall.SIGQUIT,
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGTTIN,
	syscall.SIGTTOU,
	syscall.SIGUSR1,
	syscall.SIGUSR2,
	syscall.SIGWINCH,
	syscall.SIGCHLD,
}

// installSignals wires os/signal's own channel as the self-pipe: the
// runtime already does the minimal, signal-safe "queue it and return" work
// signal handlers must do, so the main loop only needs to drain the
// channel, matching §4.5's concurrency discipline without hand-rolling a
// byte-pipe of our own.
func (a *Arbiter) installSignals() chan os.Signal {
	ch := make(chan os.Signal, 32)
	signal.Notify(ch, signals...)

	return ch
}

func (a *Arbiter) stopSignals(ch chan os.Signal) {
	signal.Stop(ch)
}

// dispatchSignal is step 1 of the main loop: resolve one dequeued signal to
// its action.
func (a *Arbiter) dispatchSignal(sig os.Signal) {
	switch sig {
	case syscall.SIGHUP:
		a.reload()
	case syscall.SIGTERM, syscall.SIGINT:
		a.quickShutdown()
	case syscall.SIGQUIT:
		a.gracefulShutdown()
	case syscall.SIGTTIN:
		a.scaleBy(1)
	case syscall.SIGTTOU:
		a.scaleBy(-1)
	case syscall.SIGUSR1:
		a.reopenLogsAndForward()
	case syscall.SIGUSR2:
		a.binaryUpgrade()
	case syscall.SIGWINCH:
		a.winch()
	case syscall.SIGCHLD:
		a.reapExited()
	}
}
