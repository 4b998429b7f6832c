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

import "github.com/nabbar/goicorn/gerrors"

const (
	ErrorSpawnWorker gerrors.CodeError = iota + gerrors.MinPkgArbiter
	ErrorWritePidFile
	ErrorRenamePidFile
	ErrorUpgradeExec
	ErrorSignalInstall
	ErrorShutdownTimeout
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = gerrors.ExistInMapMessage(ErrorSpawnWorker)
	gerrors.RegisterIdFctMessage(ErrorSpawnWorker, getMessage)
}

func getMessage(code gerrors.CodeError) string {
	switch code {
	case gerrors.UnknownError:
		return ""
	case ErrorSpawnWorker:
		return "cannot spawn worker process"
	case ErrorWritePidFile:
		return "cannot write pid file"
	case ErrorRenamePidFile:
		return "cannot rename pid file for binary upgrade"
	case ErrorUpgradeExec:
		return "binary upgrade re-exec failed"
	case ErrorSignalInstall:
		return "cannot install signal handlers"
	case ErrorShutdownTimeout:
		return "one or more workers did not stop within graceful_timeout"
	}

	return ""
}
