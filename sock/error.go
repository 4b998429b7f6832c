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

import "github.com/nabbar/goicorn/gerrors"

const (
	ErrorParseBind gerrors.CodeError = iota + gerrors.MinPkgSock
	ErrorListen
	ErrorBindInUse
	ErrorUnixRename
	ErrorInheritFd
	ErrorDup
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = gerrors.ExistInMapMessage(ErrorParseBind)
	gerrors.RegisterIdFctMessage(ErrorParseBind, getMessage)
}

func getMessage(code gerrors.CodeError) string {
	switch code {
	case gerrors.UnknownError:
		return ""
	case ErrorParseBind:
		return "cannot parse bind address"
	case ErrorListen:
		return "cannot open listening socket"
	case ErrorBindInUse:
		return "listening address already in use"
	case ErrorUnixRename:
		return "cannot atomically publish unix socket path"
	case ErrorInheritFd:
		return "cannot adopt inherited file descriptor"
	case ErrorDup:
		return "cannot duplicate file descriptor across exec"
	}

	return ""
}
