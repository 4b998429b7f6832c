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

package gconfig

import "github.com/nabbar/goicorn/gerrors"

const (
	ErrorFileRead gerrors.CodeError = iota + gerrors.MinPkgConfig
	ErrorFileParse
	ErrorEnvParse
	ErrorFlagBind
	ErrorValidate
	ErrorWatch
	ErrorDump
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = gerrors.ExistInMapMessage(ErrorFileRead)
	gerrors.RegisterIdFctMessage(ErrorFileRead, getMessage)
}

func getMessage(code gerrors.CodeError) string {
	switch code {
	case gerrors.UnknownError:
		return ""
	case ErrorFileRead:
		return "cannot read configuration file"
	case ErrorFileParse:
		return "cannot parse configuration file"
	case ErrorEnvParse:
		return "cannot parse GOICORN_CMD_ARGS environment variable"
	case ErrorFlagBind:
		return "cannot bind command line flags"
	case ErrorValidate:
		return "configuration failed validation"
	case ErrorWatch:
		return "cannot watch configuration file for changes"
	case ErrorDump:
		return "cannot marshal configuration for dump"
	}

	return ""
}
