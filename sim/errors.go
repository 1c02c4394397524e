package sim

import (
	"errors"
	"fmt"
)

// Error classes reported by the network. Use errors.Is to test for them.
var (
	// ErrConfig indicates that a run cannot start because of how the network
	// is set up, for example a clock with a non-positive step size.
	ErrConfig = errors.New("configuration error")

	// ErrAlreadyRunning is returned when Run is called while another run on
	// the same network has not finished.
	ErrAlreadyRunning = errors.New("network is already running")

	// ErrCallback wraps an error returned by a callback during a run.
	ErrCallback = errors.New("callback failed")
)

func wrapConfigf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

func wrapCallback(clock string, index int, err error) error {
	return fmt.Errorf("%w: binding %d on clock %s: %w",
		ErrCallback, index, clock, err)
}
