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
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Entry is a single structured log record under construction. Call sites
// chain FieldAdd/ErrorAdd and finish with Log or Logf.
type Entry struct {
	log     func() *logrus.Logger
	Time    time.Time
	Level   Level
	Message string
	Error   []error
	Fields  Fields
}

func newEntry(log func() *logrus.Logger, lvl Level, msg string) *Entry {
	return &Entry{
		log:     log,
		Time:    time.Now(),
		Level:   lvl,
		Message: msg,
		Fields:  make(Fields),
	}
}

func (e *Entry) FieldAdd(key string, val interface{}) *Entry {
	e.Fields = e.Fields.Add(key, val)
	return e
}

func (e *Entry) FieldMerge(f Fields) *Entry {
	e.Fields = e.Fields.Merge(f)
	return e
}

// ErrorAdd attaches one or more errors to the entry. Nil errors are
// skipped so callers can pass the result of a fallible call directly.
func (e *Entry) ErrorAdd(err ...error) *Entry {
	for _, er := range err {
		if er == nil {
			continue
		}

		e.Error = append(e.Error, er)
	}

	return e
}

// Log emits the entry to the backing logrus logger at its level. A
// NilLevel entry is dropped without touching logrus at all.
func (e *Entry) Log() {
	if e.Level == NilLevel || e.log == nil {
		return
	}

	l := e.log()
	if l == nil {
		return
	}

	fields := e.Fields.logrus()
	if len(e.Error) == 1 {
		fields["error"] = e.Error[0].Error()
	} else if len(e.Error) > 1 {
		msgs := make([]string, 0, len(e.Error))
		for _, er := range e.Error {
			msgs = append(msgs, er.Error())
		}
		fields["errors"] = msgs
	}

	entry := l.WithFields(fields).WithTime(e.Time)
	entry.Log(e.Level.logrus(), e.Message)
}

// Logf is Log with a formatted message, in the spirit of logrus.Logf.
func (e *Entry) Logf(format string, args ...interface{}) {
	e.Message = fmt.Sprintf(format, args...)
	e.Log()
}
