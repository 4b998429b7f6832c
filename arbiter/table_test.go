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

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestTable(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "arbiter internal suite")
}

var _ = Describe("Table", func() {
	It("returns live rows sorted by worker_id, preferring low ids", func() {
		tb := NewTable()
		tb.Add(&Record{ID: 2, Pid: 102, State: WorkerRunning})
		tb.Add(&Record{ID: 0, Pid: 100, State: WorkerRunning})
		tb.Add(&Record{ID: 1, Pid: 101, State: WorkerReaped})

		live := tb.Live()
		Expect(live).To(HaveLen(2))
		Expect(live[0].ID).To(Equal(0))
		Expect(live[1].ID).To(Equal(2))
	})

	It("finds the next free id reusing a reaped slot", func() {
		tb := NewTable()
		tb.Add(&Record{ID: 0, State: WorkerRunning})
		tb.Add(&Record{ID: 1, State: WorkerReaped})

		Expect(tb.NextFreeID()).To(Equal(1))
	})

	It("finds the next free id past the highest live one when none are free", func() {
		tb := NewTable()
		tb.Add(&Record{ID: 0, State: WorkerRunning})
		tb.Add(&Record{ID: 1, State: WorkerRunning})

		Expect(tb.NextFreeID()).To(Equal(2))
	})

	It("computes the minimum age among live workers only", func() {
		tb := NewTable()
		tb.Add(&Record{ID: 0, Age: 3, State: WorkerRunning})
		tb.Add(&Record{ID: 1, Age: 1, State: WorkerReaped})
		tb.Add(&Record{ID: 2, Age: 5, State: WorkerRunning})

		Expect(tb.MinAge()).To(Equal(3))
	})

	It("finds a record by pid", func() {
		tb := NewTable()
		tb.Add(&Record{ID: 0, Pid: 555, State: WorkerRunning})

		r, ok := tb.ByPid(555)
		Expect(ok).To(BeTrue())
		Expect(r.ID).To(Equal(0))

		_, ok = tb.ByPid(999)
		Expect(ok).To(BeFalse())
	})

	It("adapts a Record to hooks.Worker via hookWorker", func() {
		r := &Record{ID: 7, Pid: 888, Age: 2}
		hw := hookWorker{r}

		Expect(hw.ID()).To(Equal(7))
		Expect(hw.Pid()).To(Equal(888))
		Expect(hw.Age()).To(Equal(2))
	})
})

var _ = Describe("heartbeatExpired", func() {
	It("never expires when timeout is non-positive (disabled)", func() {
		Expect(heartbeatExpired(time.Now().Add(-time.Hour), 0)).To(BeFalse())
	})

	It("expires once the elapsed time exceeds timeout", func() {
		Expect(heartbeatExpired(time.Now().Add(-2*time.Second), time.Second)).To(BeTrue())
		Expect(heartbeatExpired(time.Now(), time.Second)).To(BeFalse())
	})
})
