package hooking

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/stepsim/sim"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var _ = Describe("TickLogger", func() {
	It("should log runs and ticks", func() {
		core, logs := observer.New(zapcore.DebugLevel)
		network := sim.NewNetwork()
		network.Add(sim.NewClock("a", 0.5), sim.Do(func() {}))
		network.AcceptHook(NewTickLogger(zap.New(core)))

		_, err := network.Run(context.Background(), 1, nil, 0)
		Expect(err).NotTo(HaveOccurred())

		entries := logs.All()
		Expect(entries).To(HaveLen(3))
		Expect(entries[0].Message).To(Equal("run start"))
		Expect(entries[1].Message).To(Equal("tick"))
		Expect(entries[1].ContextMap()["time"]).To(Equal(0.5))
		Expect(entries[2].ContextMap()["clocks"]).To(Equal([]interface{}{"a"}))
	})
})
