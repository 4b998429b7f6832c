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

package httpparse

import "github.com/nabbar/goicorn/gerrors"

// Each parse failure kind from the acceptance predicate (§4.1's failure
// taxonomy) gets its own code so a worker can map it to a fixed HTTP
// status without string matching.
const (
	ErrNoMoreData gerrors.CodeError = iota + gerrors.MinPkgHTTPParse
	ErrInvalidRequestLine
	ErrInvalidRequestMethod
	ErrInvalidHTTPVersion
	ErrInvalidHeaderName
	ErrInvalidHeader
	ErrInvalidChunkSize
	ErrLimitRequestLine
	ErrLimitRequestHeaders
	ErrLimitRequestFieldSize
	ErrInvalidSchemeHeaders
	ErrConflictingFraming
	ErrForbiddenTrailerField
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = gerrors.ExistInMapMessage(ErrNoMoreData)
	gerrors.RegisterIdFctMessage(ErrNoMoreData, getMessage)
}

func getMessage(code gerrors.CodeError) string {
	switch code {
	case gerrors.UnknownError:
		return ""
	case ErrNoMoreData:
		return "more data required to complete the request head"
	case ErrInvalidRequestLine:
		return "malformed request line"
	case ErrInvalidRequestMethod:
		return "request method is not an acceptable token"
	case ErrInvalidHTTPVersion:
		return "unsupported or malformed HTTP version"
	case ErrInvalidHeaderName:
		return "malformed or ambiguous header name"
	case ErrInvalidHeader:
		return "malformed header line"
	case ErrInvalidChunkSize:
		return "malformed chunk size line"
	case ErrLimitRequestLine:
		return "request line exceeds limit_request_line"
	case ErrLimitRequestHeaders:
		return "header field count exceeds limit_request_fields"
	case ErrLimitRequestFieldSize:
		return "header field exceeds limit_request_field_size"
	case ErrInvalidSchemeHeaders:
		return "conflicting secure scheme headers"
	case ErrConflictingFraming:
		return "message has both Content-Length and Transfer-Encoding framing"
	case ErrForbiddenTrailerField:
		return "trailer field attempted to smuggle a framing or host header"
	}

	return ""
}

// StatusFor maps a parse failure code to the HTTP status the worker writes
// back on the wire before closing the connection, per §7's parse-error
// recovery policy.
func StatusFor(code gerrors.CodeError) int {
	switch code {
	case ErrLimitRequestLine:
		return 414
	case ErrLimitRequestFieldSize:
		return 431
	case ErrLimitRequestHeaders:
		return 431
	case ErrInvalidRequestMethod:
		return 501
	case ErrInvalidHTTPVersion:
		return 505
	default:
		return 400
	}
}
