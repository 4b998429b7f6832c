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

package sock_test

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/goicorn/sock"
)

func TestSock(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "sock suite")
}

var _ = Describe("Bind", func() {
	It("binds an ephemeral TCP port", func() {
		ep, err := sock.Bind("127.0.0.1:0", sock.Options{})
		Expect(err).NotTo(HaveOccurred())
		defer ep.Close()

		Expect(ep.Listener.Addr().(*net.TCPAddr).Port).NotTo(BeZero())
	})

	It("publishes a unix socket atomically, leaving no .tmp behind", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "goicorn.sock")

		ep, err := sock.Bind("unix:"+path, sock.Options{})
		Expect(err).NotTo(HaveOccurred())
		defer ep.Close()

		_, statErr := os.Stat(path)
		Expect(statErr).NotTo(HaveOccurred())

		_, tmpErr := os.Stat(path + ".tmp")
		Expect(os.IsNotExist(tmpErr)).To(BeTrue())
	})

	It("rejects an unparseable inherited fd", func() {
		_, err := sock.Bind("fd://not-a-number", sock.Options{})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("PrepareForExec and AdoptFromEnv", func() {
	It("round-trips a bound endpoint across a simulated re-exec", func() {
		ep, err := sock.Bind("127.0.0.1:0", sock.Options{})
		Expect(err).NotTo(HaveOccurred())
		defer ep.Close()

		raw, files, err := sock.PrepareForExec([]*sock.Endpoint{ep})
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).NotTo(BeEmpty())
		Expect(strings.Contains(raw, ",")).To(BeFalse())

		defer func() {
			for _, f := range files {
				_ = f.Close()
			}
		}()

		eps, errs := sock.AdoptFromEnv(raw, []string{ep.Addr})
		Expect(errs).To(BeEmpty())
		Expect(eps).To(HaveLen(1))
		Expect(eps[0].Addr).To(Equal(ep.Addr))

		defer eps[0].Close()
	})
})
