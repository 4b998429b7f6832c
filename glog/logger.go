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

package glog

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Logger is held by both the arbiter and every worker. Entry starts a new
// structured record; SetOutput and SetLevel are safe to call from a signal
// handler goroutine, which is how USR1 "reopen log files" and a config
// reload are wired without tearing down the process.
type Logger interface {
	Entry(lvl Level, message string) *Entry
	SetLevel(lvl Level)
	SetOutput(w io.Writer)
	SetFields(f Fields)
	Clone() Logger
}

type logger struct {
	mu  sync.Mutex
	lvl atomic.Uint32
	std *logrus.Logger
	std2fields Fields
}

// New builds a Logger writing to w (os.Stderr when w is nil) at the given
// level, formatted as JSON so operators can pipe arbiter/worker output
// straight into a log aggregator.
func New(lvl Level, w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}

	l := &logger{
		std: &logrus.Logger{
			Out:       w,
			Formatter: &logrus.JSONFormatter{},
			Hooks:     make(logrus.LevelHooks),
			Level:     lvl.logrus(),
		},
	}
	l.lvl.Store(uint32(lvl))

	return l
}

func (l *logger) Entry(lvl Level, message string) *Entry {
	l.mu.Lock()
	base := l.std2fields
	l.mu.Unlock()

	e := newEntry(l.get, lvl, message)
	e.Fields = e.Fields.Merge(base)

	return e
}

func (l *logger) get() *logrus.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.std
}

func (l *logger) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lvl.Store(uint32(lvl))
	l.std.SetLevel(lvl.logrus())
}

// SetOutput swaps the underlying writer, used when USR1 asks every worker
// and the arbiter to reopen their log files after a logrotate-style
// rename.
func (l *logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.std.SetOutput(w)
}

func (l *logger) SetFields(f Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.std2fields = f
}

// Clone returns a Logger sharing the same backing output but carrying its
// own base fields, used to tag a worker's log entries with its pid without
// mutating the arbiter's logger.
func (l *logger) Clone() Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := &logger{std: l.std, std2fields: make(Fields).Merge(l.std2fields)}
	n.lvl.Store(l.lvl.Load())

	return n
}
