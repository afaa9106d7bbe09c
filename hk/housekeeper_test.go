// Package hk provides mechanism for registering cleanup
// functions which are invoked at specified intervals.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package hk_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aisnotify/notifyd/hk"
)

var _ = Describe("Housekeeper", func() {
	It("runs a registered job and reschedules it", func() {
		calls := make(chan time.Time, 8)
		hk.Reg("probe", func(now time.Time) time.Duration {
			calls <- now
			return time.Hour // push the next run far out so the test doesn't race a second fire
		}, time.Millisecond)

		Eventually(calls, time.Second).Should(Receive())
		hk.Unreg("probe")
	})

	It("stops rescheduling a job that returns <= 0", func() {
		calls := make(chan struct{}, 8)
		hk.Reg("one-shot", func(time.Time) time.Duration {
			calls <- struct{}{}
			return 0
		}, time.Millisecond)

		Eventually(calls, time.Second).Should(Receive())
		Consistently(calls, 50*time.Millisecond).ShouldNot(Receive())
	})
})
