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

package gerrors

import (
	"sort"
	"strconv"
)

// CodeError is a numeric error classification, in the same spirit as an
// HTTP status code: each package reserves a range of values via a MinPkgXxx
// base declared in modules.go and builds its own const block on top of it.
type CodeError uint16

const (
	// UnknownError is returned when no code was set on an error.
	UnknownError CodeError = 0

	// UnknownMessage is the fallback message for UnknownError.
	UnknownMessage = "unknown error"
)

var idMsgFct = make(map[CodeError]Message)

// Message resolves a CodeError to its human readable text. Every package
// registers one of these in its init() via RegisterIdFctMessage.
type Message func(code CodeError) (message string)

// NewCodeError wraps a raw uint16 into a CodeError.
func NewCodeError(code uint16) CodeError {
	return CodeError(code)
}

func (c CodeError) Uint16() uint16 {
	return uint16(c)
}

func (c CodeError) Int() int {
	return int(c)
}

func (c CodeError) String() string {
	return strconv.Itoa(c.Int())
}

// Message returns the registered text for this code, or UnknownMessage if
// none is registered.
func (c CodeError) Message() string {
	if c == UnknownError {
		return UnknownMessage
	}

	if f, ok := idMsgFct[findCodeErrorInMapMessage(c)]; ok {
		if m := f(c); m != "" {
			return m
		}
	}

	return UnknownMessage
}

// Error builds an Error carrying this code, its registered message, and the
// given parents.
func (c CodeError) Error(parent ...error) Error {
	return New(c.Uint16(), c.Message(), parent...)
}

// IfError is the CodeError-bound equivalent of the package-level IfError.
func (c CodeError) IfError(parent ...error) Error {
	return IfError(c.Uint16(), c.Message(), parent...)
}

// RegisterIdFctMessage associates a Message resolver with every code at or
// above minCode until the next registered base. Called once from each
// package's init().
func RegisterIdFctMessage(minCode CodeError, fct Message) {
	idMsgFct[minCode] = fct
}

// ExistInMapMessage reports whether a resolver is already registered for
// the given code's package base. Packages use this to detect accidental
// double registration in tests.
func ExistInMapMessage(code CodeError) bool {
	_, ok := idMsgFct[findCodeErrorInMapMessage(code)]
	return ok
}

func getMapMessageKey() []CodeError {
	keys := make([]CodeError, 0, len(idMsgFct))
	for k := range idMsgFct {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})

	return keys
}

// findCodeErrorInMapMessage finds the largest registered base that is less
// than or equal to code, which is how a single init() registration covers
// every constant declared on top of that package's MinPkgXxx value.
func findCodeErrorInMapMessage(code CodeError) CodeError {
	var found CodeError

	for _, k := range getMapMessageKey() {
		if k <= code {
			found = k
		} else {
			break
		}
	}

	return found
}

func unicCodeSlice(slice []CodeError) []CodeError {
	seen := make(map[CodeError]bool, len(slice))
	res := make([]CodeError, 0, len(slice))

	for _, c := range slice {
		if seen[c] {
			continue
		}

		seen[c] = true
		res = append(res, c)
	}

	return res
}
