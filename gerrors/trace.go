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
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	pathSeparator = "/"
	pathVendor    = "vendor"
	pathMod       = "mod"
	pathPkg       = "pkg"
)

func convPathFromLocal(str string) string {
	return strings.Replace(str, string(filepath.Separator), pathSeparator, -1)
}

// getFrame walks the call stack past this package's own frames and returns
// the first frame belonging to the caller, so a wrapped error points at the
// site that raised it, not at gerrors.New itself.
func getFrame() runtime.Frame {
	pc := make([]uintptr, 20)
	n := runtime.Callers(2, pc)

	if n <= 0 {
		return runtime.Frame{}
	}

	frames := runtime.CallersFrames(pc[:n])
	for {
		frame, more := frames.Next()

		if strings.Contains(frame.Function, "nabbar/goicorn/gerrors") {
			if !more {
				return runtime.Frame{}
			}

			continue
		}

		return runtime.Frame{Function: frame.Function, File: frame.File, Line: frame.Line}
	}
}

func filterPath(pathname string) string {
	filterMod := pathSeparator + pathPkg + pathSeparator + pathMod + pathSeparator
	filterVendor := pathSeparator + pathVendor + pathSeparator

	pathname = convPathFromLocal(pathname)

	if i := strings.LastIndex(pathname, filterMod); i != -1 {
		pathname = pathname[i+len(filterMod):]
	}

	if i := strings.LastIndex(pathname, filterVendor); i != -1 {
		pathname = pathname[i+len(filterVendor):]
	}

	return strings.Trim(path.Clean(pathname), pathSeparator)
}
