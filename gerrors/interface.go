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

// Package gerrors implements a coded error hierarchy shared by every package
// of this module: a numeric Code, a parent chain, and a message registry so
// each package can declare its own error values without colliding with
// another package's numbering.
package gerrors

import (
	"fmt"
	"math"
)

// FuncMap is called once per error in a Map traversal (current error first,
// then each parent). Returning false stops the traversal early.
type FuncMap func(e error) bool

// Error extends the standard error with code classification, a parent chain
// and errors.Is/As compatibility via Unwrap.
type Error interface {
	error

	IsCode(code CodeError) bool
	HasCode(code CodeError) bool
	GetCode() CodeError
	GetParentCode() []CodeError

	Is(e error) bool
	IsError(e error) bool
	HasError(err error) bool
	HasParent() bool
	GetParent(withMainError bool) []error
	Map(fct FuncMap) bool
	ContainsString(s string) bool

	Add(parent ...error)
	SetParent(parent ...error)

	Code() uint16
	CodeSlice() []uint16

	StringError() string
	StringErrorSlice() []string

	GetError() error
	GetErrorSlice() []error
	Unwrap() []error

	GetTrace() string
	GetTraceSlice() []string
}

// Make wraps any error into an Error, returning it unchanged if it already
// implements the interface, and nil if the given error is nil.
func Make(e error) Error {
	if e == nil {
		return nil
	}

	if er, ok := e.(Error); ok {
		return er
	}

	return &ers{
		c: 0,
		e: e.Error(),
		p: nil,
		t: getFrame(),
	}
}

// New builds an Error carrying the given numeric code, message and parents.
func New(code uint16, message string, parent ...error) Error {
	var p = make([]Error, 0)

	for _, e := range parent {
		if er := Make(e); er != nil {
			p = append(p, er)
		}
	}

	return &ers{
		c: code,
		e: message,
		p: p,
		t: getFrame(),
	}
}

// Newf builds an Error whose message is produced by fmt.Sprintf.
func Newf(code uint16, pattern string, args ...interface{}) Error {
	return &ers{
		c: code,
		e: fmt.Sprintf(pattern, args...),
		p: make([]Error, 0),
		t: getFrame(),
	}
}

// IfError returns a new Error only when at least one non-nil parent is
// given; it returns nil otherwise, which lets callers write
//
//	if e := gerrors.IfError(code, msg, err1, err2); e != nil { ... }
func IfError(code uint16, message string, parent ...error) Error {
	p := make([]Error, 0)

	for _, e := range parent {
		if er := Make(e); er != nil {
			p = append(p, er)
		}
	}

	if len(p) < 1 {
		return nil
	}

	return &ers{
		c: code,
		e: message,
		p: p,
		t: getFrame(),
	}
}

// ParseCodeError clamps an arbitrary int64 into the valid CodeError range.
func ParseCodeError(i int64) CodeError {
	if i < 0 {
		return UnknownError
	} else if i >= int64(math.MaxUint16) {
		return CodeError(math.MaxUint16)
	}

	return CodeError(i)
}
