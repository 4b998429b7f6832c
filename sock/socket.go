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

// Package sock owns every listening file descriptor the arbiter holds: it
// binds fresh TCP/UNIX sockets, adopts inherited ones across a re-exec, and
// serializes the live set back into an environment variable for the next
// generation.
package sock

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/nabbar/goicorn/gerrors"
)

// Endpoint is one bound listening socket, kept open from arbiter startup
// (or inheritance from a predecessor) until shutdown or a graceful
// binary-upgrade handoff.
type Endpoint struct {
	Addr     string
	Listener net.Listener
	file     *os.File
}

// File returns the *os.File backing this listener, used both to pass the
// fd to a forked worker via ExtraFiles and to serialize it across re-exec.
func (e *Endpoint) File() (*os.File, error) {
	if e.file != nil {
		return e.file, nil
	}

	switch l := e.Listener.(type) {
	case *net.TCPListener:
		return l.File()
	case *net.UnixListener:
		return l.File()
	default:
		return nil, fmt.Errorf("unsupported listener type %T", l)
	}
}

// Close closes the listener only. For a UNIX socket the published path is
// not removed: the listener was bound under the temporary name that the
// rename already replaced, so closing it leaves the final path in place.
func (e *Endpoint) Close() error {
	return e.Listener.Close()
}

// Options configures how a bind string is realized.
type Options struct {
	ReusePort bool
	UnixUmask os.FileMode
}

// Bind realizes one `--bind` entry. Three forms are accepted:
//   - "host:port" or ":port"          -> TCP (v4 or v6 depending on host)
//   - "unix:/path/to.sock"            -> UNIX stream socket, atomically published
//   - "fd://N"                        -> adopt an already-open, inherited fd
func Bind(addr string, opts Options) (*Endpoint, error) {
	switch {
	case strings.HasPrefix(addr, "fd://"):
		return adoptFd(addr)
	case strings.HasPrefix(addr, "unix:"):
		return bindUnix(strings.TrimPrefix(addr, "unix:"), opts)
	default:
		return bindTCP(addr, opts)
	}
}

func bindTCP(addr string, opts Options) (*Endpoint, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error

			err := c.Control(func(fd uintptr) {
				if serr := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); serr != nil {
					ctrlErr = serr
					return
				}

				if opts.ReusePort {
					if serr := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); serr != nil {
						ctrlErr = serr
					}
				}
			})
			if err != nil {
				return err
			}

			return ctrlErr
		},
	}

	l, err := lc.Listen(nil, "tcp", addr)
	if err != nil {
		return nil, gerrors.New(ErrorListen.Uint16(), ErrorListen.Message(), err)
	}

	return &Endpoint{Addr: addr, Listener: l}, nil
}

// bindUnix implements the atomic-replacement rule of §4.4: bind on a temp
// path, set permissions, then rename over the final path so a concurrent
// client never observes a socket file that exists but isn't listening yet.
func bindUnix(path string, opts Options) (*Endpoint, error) {
	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	l, err := net.Listen("unix", tmp)
	if err != nil {
		return nil, gerrors.New(ErrorListen.Uint16(), ErrorListen.Message(), err)
	}

	mode := opts.UnixUmask
	if mode == 0 {
		mode = 0o666
	}

	if err := os.Chmod(tmp, mode); err != nil {
		_ = l.Close()
		return nil, gerrors.New(ErrorListen.Uint16(), ErrorListen.Message(), err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = l.Close()
		return nil, gerrors.New(ErrorUnixRename.Uint16(), ErrorUnixRename.Message(), err)
	}

	return &Endpoint{Addr: "unix:" + path, Listener: l}, nil
}

// adoptFd wires up an endpoint from an inherited fd, validating it with
// Fstat first per the partially-closed re-exec fd-list clarification: a
// bad fd is dropped with an error the caller logs and moves past, rather
// than aborting the whole startup.
func adoptFd(addr string) (*Endpoint, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(addr, "fd://"))
	if err != nil {
		return nil, gerrors.New(ErrorInheritFd.Uint16(), ErrorInheritFd.Message(), err)
	}

	fd := uintptr(n)

	var st unix.Stat_t
	if err := unix.Fstat(n, &st); err != nil {
		return nil, gerrors.New(ErrorInheritFd.Uint16(), ErrorInheritFd.Message(), err)
	}

	f := os.NewFile(fd, addr)
	l, err := net.FileListener(f)
	if err != nil {
		return nil, gerrors.New(ErrorInheritFd.Uint16(), ErrorInheritFd.Message(), err)
	}

	return &Endpoint{Addr: addr, Listener: l, file: f}, nil
}
