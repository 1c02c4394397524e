// Package results writes the outcome of a simulation into a results
// directory: a summary of the last run and raw dumps of state arrays.
package results

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sarchlab/stepsim/sim"
	"go.uber.org/zap"
)

// DefaultDir is the results directory used when none is given.
const DefaultDir = "results"

// RunInfoFile is the name of the file that holds the last run summary.
const RunInfoFile = "last_run_info.txt"

// A Writer writes results into a directory.
type Writer struct {
	dir    string
	logger *zap.Logger
}

// NewWriter creates a Writer for dir, creating the directory if needed.
func NewWriter(dir string, logger *zap.Logger) (*Writer, error) {
	if dir == "" {
		dir = DefaultDir
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating results dir: %w", err)
	}

	return &Writer{dir: dir, logger: logger}, nil
}

// Dir returns the results directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Path returns the path of a file in the results directory.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// WriteRunInfo writes the wall time in seconds and the completed fraction
// of a run, separated by a space, into last_run_info.txt.
func (w *Writer) WriteRunInfo(report sim.RunReport) error {
	content := fmt.Sprintf("%.6g %.6g\n",
		report.Elapsed.Seconds(), report.CompletedFraction)

	err := os.WriteFile(w.Path(RunInfoFile), []byte(content), 0o644)
	if err != nil {
		return fmt.Errorf("writing run info: %w", err)
	}

	w.logger.Debug("run info written",
		zap.String("file", w.Path(RunInfoFile)),
		zap.Duration("elapsed", report.Elapsed),
		zap.Float64("completed", report.CompletedFraction))

	return nil
}

// WriteArray dumps the raw little-endian bytes of data, a slice of fixed
// size numbers, into the named file.
func (w *Writer) WriteArray(name string, data any) error {
	buf := bytes.NewBuffer(nil)
	if err := binary.Write(buf, binary.LittleEndian, data); err != nil {
		return fmt.Errorf("encoding array %s: %w", name, err)
	}

	if err := os.WriteFile(w.Path(name), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing array %s: %w", name, err)
	}

	w.logger.Debug("array written",
		zap.String("name", name),
		zap.Int("bytes", buf.Len()))

	return nil
}

// ReadRunInfo parses a last_run_info.txt file.
func ReadRunInfo(path string) (elapsedSeconds, completed float64, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}

	_, err = fmt.Sscanf(string(content), "%g %g", &elapsedSeconds, &completed)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing %s: %w", path, err)
	}

	return elapsedSeconds, completed, nil
}

// ReadArray fills data, a slice of fixed size numbers, from the raw bytes in
// a file. The file size must match the size of data exactly.
func ReadArray(path string, data any) error {
	size := binary.Size(data)
	if size < 0 {
		return fmt.Errorf("unsupported array type %T", data)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if len(content) != size {
		return fmt.Errorf("%w: file %s has %d bytes, expected %d",
			ErrSizeMismatch, path, len(content), size)
	}

	return binary.Read(bytes.NewReader(content), binary.LittleEndian, data)
}
