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

package heartbeat_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/goicorn/heartbeat"
)

func TestHeartbeat(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "heartbeat suite")
}

var _ = Describe("File", func() {
	It("never loses mtime monotonicity across successive Notify calls", func() {
		h, err := heartbeat.Create("")
		Expect(err).NotTo(HaveOccurred())
		defer h.Close()

		t1, err := h.MTime()
		Expect(err).NotTo(HaveOccurred())

		time.Sleep(5 * time.Millisecond)
		Expect(h.Notify()).To(Succeed())

		t2, err := h.MTime()
		Expect(err).NotTo(HaveOccurred())

		Expect(t2).To(BeTemporally(">=", t1))
	})

	It("reports Expired once the timeout elapses with no Notify", func() {
		h, err := heartbeat.Create("")
		Expect(err).NotTo(HaveOccurred())
		defer h.Close()

		mtime, err := h.MTime()
		Expect(err).NotTo(HaveOccurred())

		Expect(heartbeat.Expired(mtime, time.Hour)).To(BeFalse())
		Expect(heartbeat.Expired(mtime.Add(-2*time.Hour), time.Hour)).To(BeTrue())
	})
})
