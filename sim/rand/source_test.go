package rand

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mathext/prng"
)

type countingEngine struct {
	engine Engine
	draws  int
}

func (e *countingEngine) Uint32() uint32 {
	e.draws++
	return e.engine.Uint32()
}

type constantEngine uint32

func (e constantEngine) Uint32() uint32 {
	return uint32(e)
}

var _ = Describe("Source", func() {
	It("should produce the reference Mersenne Twister stream", func() {
		s := NewSourceWithSeed(5489)

		Expect(s.Uint32()).To(Equal(uint32(3499211612)))
		Expect(s.Uint32()).To(Equal(uint32(581869302)))
	})

	It("should combine two reduced draws into a uniform value", func() {
		s := NewSourceWithSeed(5489)

		expected := (float64(uint32(3499211612)>>5)*67108864.0 +
			float64(uint32(581869302)>>6)) / 9007199254740992.0

		Expect(s.Uniform()).To(Equal(expected))
		Expect(expected).To(BeNumerically("~", 0.8147236863931789, 1e-16))
	})

	It("should keep uniform values in [0, 1)", func() {
		s := NewSourceWithSeed(1)
		for i := 0; i < 100000; i++ {
			v := s.Uniform()
			Expect(v).To(BeNumerically(">=", 0))
			Expect(v).To(BeNumerically("<", 1))
		}

		Expect(NewSourceWithEngine(constantEngine(math.MaxUint32)).Uniform()).
			To(BeNumerically("<", 1))
	})

	It("should repeat the stream for the same seed", func() {
		s1 := NewSourceWithSeed(2024)
		s2 := NewSourceWithSeed(2024)

		for i := 0; i < 1000; i++ {
			Expect(math.Float64bits(s1.Uniform())).
				To(Equal(math.Float64bits(s2.Uniform())))
			Expect(math.Float64bits(s1.Gaussian())).
				To(Equal(math.Float64bits(s2.Gaussian())))
		}
	})

	It("should produce the reference normal deviates", func() {
		s := NewSourceWithSeed(42)

		Expect(s.Gaussian()).To(Equal(0.4967141530112327))
		Expect(s.Gaussian()).To(Equal(-0.13826430117118466))
	})

	It("should use the stored deviate without drawing", func() {
		mt := prng.NewMT19937()
		mt.Seed(7)
		engine := &countingEngine{engine: mt}
		s := NewSourceWithEngine(engine)

		s.Gaussian()
		drawsAfterFirst := engine.draws
		Expect(drawsAfterFirst).To(BeNumerically(">=", 4))
		Expect(drawsAfterFirst % 4).To(Equal(0))
		Expect(s.HasStoredGaussian()).To(BeTrue())

		s.Gaussian()
		Expect(engine.draws).To(Equal(drawsAfterFirst))
		Expect(s.HasStoredGaussian()).To(BeFalse())

		s.Gaussian()
		Expect(engine.draws).To(BeNumerically(">", drawsAfterFirst))
	})

	It("should drop the stored deviate when reseeded", func() {
		s := NewSourceWithSeed(42)
		s.Gaussian()
		Expect(s.HasStoredGaussian()).To(BeTrue())

		s.SeedWith(42)

		Expect(s.HasStoredGaussian()).To(BeFalse())
		Expect(s.Gaussian()).To(Equal(0.4967141530112327))
	})

	It("should drop the stored deviate when reseeded from entropy", func() {
		s := NewSourceWithSeed(42)
		s.Gaussian()

		s.Seed()

		Expect(s.HasStoredGaussian()).To(BeFalse())
	})

	It("should have roughly standard normal moments", func() {
		s := NewSourceWithSeed(3)
		n := 200000
		sum, sumSq := 0.0, 0.0
		for i := 0; i < n; i++ {
			v := s.Gaussian()
			sum += v
			sumSq += v * v
		}

		mean := sum / float64(n)
		Expect(mean).To(BeNumerically("~", 0, 0.01))
		Expect(sumSq/float64(n) - mean*mean).To(BeNumerically("~", 1, 0.02))
	})

	It("should give up on an engine that never hits the unit disk", func() {
		s := NewSourceWithEngine(constantEngine(0))
		Expect(func() { s.Gaussian() }).To(Panic())
	})
})

var _ = Describe("Pool", func() {
	It("should hold independent sources", func() {
		p := NewPool(3)
		Expect(p.Len()).To(Equal(3))
		Expect(p.Get(0)).NotTo(BeIdenticalTo(p.Get(1)))
	})

	It("should seed each context with its own offset", func() {
		p := NewPool(2)
		p.SeedAll(100)

		Expect(p.Get(0).Uniform()).To(Equal(NewSourceWithSeed(100).Uniform()))
		Expect(p.Get(1).Uniform()).To(Equal(NewSourceWithSeed(101).Uniform()))
	})

	It("should keep streams independent of each other's use", func() {
		p := NewPool(2)
		p.SeedAll(9)
		for i := 0; i < 50; i++ {
			p.Get(0).Uniform()
		}

		Expect(p.Get(1).Uniform()).To(Equal(NewSourceWithSeed(10).Uniform()))
	})

	It("should reject an empty pool", func() {
		Expect(func() { NewPool(0) }).To(Panic())
	})

	It("should reseed from entropy", func() {
		p := NewPool(1)
		p.Get(0).Gaussian()
		p.SeedFromEntropy()
		Expect(p.Get(0).HasStoredGaussian()).To(BeFalse())
	})
})
