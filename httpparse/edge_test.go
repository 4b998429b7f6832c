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

package httpparse_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nabbar/goicorn/httpparse"
)

func TestRequestLineEdgeCases(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"well formed", "GET / HTTP/1.1\r\nHost: x\r\n\r\n", false},
		{"double space in request line", "GET  / HTTP/1.1\r\nHost: x\r\n\r\n", true},
		{"http 1.0 accepted", "GET / HTTP/1.0\r\nHost: x\r\n\r\n", false},
		{"leading zero minor version rejected", "GET / HTTP/1.01\r\nHost: x\r\n\r\n", true},
		{"unknown version rejected", "GET / HTTP/2.0\r\nHost: x\r\n\r\n", true},
		{"empty method rejected", " / HTTP/1.1\r\nHost: x\r\n\r\n", true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p := httpparse.NewParser(httpparse.Options{})
			_, err := p.Feed([]byte(tc.raw))

			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestTransferEncodingOnHTTP10Rejected(t *testing.T) {
	p := httpparse.NewParser(httpparse.Options{})
	raw := "POST / HTTP/1.0\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n"

	_, err := p.Feed([]byte(raw))
	require.Error(t, err)
}

func TestDuplicateContentLengthAgreeingIsMerged(t *testing.T) {
	p := httpparse.NewParser(httpparse.Options{})
	raw := "POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\nContent-Length: 5\r\n\r\n"

	done, err := p.Feed([]byte(raw))
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, int64(5), p.Head().ContentLength)
}

func TestDuplicateContentLengthDisagreeingRejected(t *testing.T) {
	p := httpparse.NewParser(httpparse.Options{})
	raw := "POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\nContent-Length: 6\r\n\r\n"

	_, err := p.Feed([]byte(raw))
	require.Error(t, err)
}

func TestUnderscoreHeaderNameIsAmbiguousWithoutACollidingSibling(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: x\r\nX-Foo_Bar: 1\r\n\r\n"

	t.Run("drop", func(t *testing.T) {
		p := httpparse.NewParser(httpparse.Options{HeaderMap: httpparse.HeaderMapDrop})

		done, err := p.Feed([]byte(raw))
		require.NoError(t, err)
		require.True(t, done)
		_, ok := p.Head().Environ["HTTP_X_FOO_BAR"]
		require.False(t, ok, "an underscore-bearing header must not reach environ under the drop policy")
	})

	t.Run("refuse", func(t *testing.T) {
		p := httpparse.NewParser(httpparse.Options{HeaderMap: httpparse.HeaderMapRefuse})

		_, err := p.Feed([]byte(raw))
		require.Error(t, err)
	})

	t.Run("dangerous", func(t *testing.T) {
		p := httpparse.NewParser(httpparse.Options{HeaderMap: httpparse.HeaderMapDangerous})

		done, err := p.Feed([]byte(raw))
		require.NoError(t, err)
		require.True(t, done)
		require.Equal(t, "1", p.Head().Environ["HTTP_X_FOO_BAR"])
	})
}
