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

import (
	"fmt"

	"github.com/nabbar/goicorn/gerrors"
)

// Validate checks the merged configuration for the fail-closed startup
// constraints described by the worker/socket/header-map invariants: an
// arbiter with an invalid configuration must never bind a socket. It backs
// both ordinary startup and --check-config.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Bind) == 0 {
		errs = append(errs, fmt.Errorf("at least one --bind address is required"))
	}

	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be >= 1, got %d", c.Workers))
	}

	if c.Threads < 1 {
		errs = append(errs, fmt.Errorf("threads must be >= 1, got %d", c.Threads))
	}

	switch c.HeaderMap {
	case "drop", "refuse", "dangerous":
	default:
		errs = append(errs, fmt.Errorf("header_map must be one of drop, refuse, dangerous, got %q", c.HeaderMap))
	}

	if c.MaxRequestsJitter > 0 && c.MaxRequests <= 0 {
		errs = append(errs, fmt.Errorf("max_requests_jitter requires max_requests > 0"))
	}

	if c.LimitRequestLine < 0 {
		errs = append(errs, fmt.Errorf("limit_request_line cannot be negative"))
	}

	if c.LimitRequestFields < 0 {
		errs = append(errs, fmt.Errorf("limit_request_fields cannot be negative"))
	}

	if c.LimitRequestFieldSize < 0 {
		errs = append(errs, fmt.Errorf("limit_request_field_size cannot be negative"))
	}

	if len(errs) == 0 {
		return nil
	}

	e := gerrors.New(ErrorValidate.Uint16(), ErrorValidate.Message())
	e.Add(errs...)

	return e
}
