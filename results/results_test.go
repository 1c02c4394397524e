package results

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/stepsim/sim"
)

var _ = Describe("Writer", func() {
	var (
		dir string
		w   *Writer
	)

	BeforeEach(func() {
		dir = filepath.Join(GinkgoT().TempDir(), "out")

		var err error
		w, err = NewWriter(dir, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should create the directory", func() {
		info, err := os.Stat(dir)

		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})

	It("should write the run info", func() {
		err := w.WriteRunInfo(sim.RunReport{
			Elapsed:           1500 * time.Millisecond,
			CompletedFraction: 0.25,
		})
		Expect(err).NotTo(HaveOccurred())

		content, err := os.ReadFile(filepath.Join(dir, RunInfoFile))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(content)).To(Equal("1.5 0.25\n"))

		elapsed, completed, err := ReadRunInfo(w.Path(RunInfoFile))
		Expect(err).NotTo(HaveOccurred())
		Expect(elapsed).To(Equal(1.5))
		Expect(completed).To(Equal(0.25))
	})

	It("should write a completed run as 1", func() {
		err := w.WriteRunInfo(sim.RunReport{CompletedFraction: 1})
		Expect(err).NotTo(HaveOccurred())

		content, _ := os.ReadFile(w.Path(RunInfoFile))
		Expect(string(content)).To(Equal("0 1\n"))
	})

	It("should dump arrays as little-endian bytes", func() {
		err := w.WriteArray("y", []float64{1, -2})
		Expect(err).NotTo(HaveOccurred())

		content, err := os.ReadFile(w.Path("y"))
		Expect(err).NotTo(HaveOccurred())
		Expect(content).To(Equal([]byte{
			0, 0, 0, 0, 0, 0, 0xf0, 0x3f,
			0, 0, 0, 0, 0, 0, 0, 0xc0,
		}))

		back := make([]float64, 2)
		Expect(ReadArray(w.Path("y"), back)).To(Succeed())
		Expect(back).To(Equal([]float64{1, -2}))
	})

	It("should reject files of the wrong size", func() {
		Expect(w.WriteArray("i", []int32{1, 2, 3})).To(Succeed())

		back := make([]float64, 2)
		err := ReadArray(w.Path("i"), back)

		Expect(err).To(MatchError(ErrSizeMismatch))
	})

	It("should reject unsupported types", func() {
		Expect(w.WriteArray("s", []string{"a"})).NotTo(Succeed())
	})
})
