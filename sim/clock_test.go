package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Clock", func() {
	var clock *Clock

	BeforeEach(func() {
		clock = NewClock("clock", 0.1)
	})

	It("should start at time 0", func() {
		Expect(clock.Step()).To(Equal(int64(0)))
		Expect(clock.CurrentTime()).To(Equal(VTimeInSec(0)))
	})

	It("should derive the time from the step count", func() {
		for i := 0; i < 1000; i++ {
			clock.Advance()
		}

		Expect(clock.Step()).To(Equal(int64(1000)))
		Expect(clock.CurrentTime()).To(Equal(VTimeInSec(1000) * 0.1))
	})

	It("should reflect a new step size immediately", func() {
		clock.Advance()
		clock.Advance()

		clock.SetDT(0.5)

		Expect(clock.CurrentTime()).To(Equal(VTimeInSec(1.0)))
		Expect(clock.NextTime()).To(Equal(VTimeInSec(1.5)))
	})

	It("should tell the time of the next tick", func() {
		clock.Advance()
		Expect(clock.NextTime()).To(Equal(VTimeInSec(2) * 0.1))
	})

	It("should tell if it is due", func() {
		clock.Advance()
		clock.Advance()
		clock.Advance()

		Expect(clock.IsDue(0.3, clock.Tolerance(0.3))).To(BeTrue())
		Expect(clock.IsDue(0.29, clock.Tolerance(0.29))).To(BeFalse())
		Expect(clock.IsDue(1, 0)).To(BeTrue())
	})

	It("should treat rounding noise as reaching the horizon", func() {
		for i := 0; i < 3; i++ {
			clock.Advance()
		}

		// 3*0.1 is 0.30000000000000004
		Expect(pending(clock, 0.3)).To(BeFalse())
		Expect(pending(clock, 0.4)).To(BeTrue())
		Expect(clock.IsDue(0.3, -clock.Tolerance(0.3))).To(BeFalse())
	})

	It("should reset", func() {
		clock.Advance()
		clock.Reset()

		Expect(clock.Step()).To(Equal(int64(0)))
	})

	It("should restore a step count", func() {
		clock.SetStep(42)
		Expect(clock.CurrentTime()).To(Equal(VTimeInSec(42) * 0.1))
	})

	It("should panic on a negative step count", func() {
		Expect(func() { clock.SetStep(-1) }).To(Panic())
	})

	It("should be created from a frequency", func() {
		c := NewClockWithFreq("fast", 1*KHz)
		Expect(c.DT()).To(BeNumerically("~", 1e-3, 1e-15))
		Expect(c.Name()).To(Equal("fast"))
	})

	It("should use the default step size", func() {
		Expect(NewDefaultClock().DT()).To(Equal(DefaultDT))
	})

	DescribeTable("validation",
		func(dt float64, valid bool) {
			clock.SetDT(VTimeInSec(dt))
			err := clock.validate()
			if valid {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(err).To(MatchError(ErrConfig))
			}
		},
		Entry("positive", 0.1, true),
		Entry("zero", 0.0, false),
		Entry("negative", -0.1, false),
	)
})

var _ = Describe("SameTime", func() {
	It("should accept rounding noise", func() {
		Expect(SameTime(0.1+0.2, 0.3)).To(BeTrue())
	})

	It("should tell different times apart", func() {
		Expect(SameTime(0.3, 0.30001)).To(BeFalse())
	})
})
