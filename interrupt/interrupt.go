// Package interrupt connects SIGINT to a running network. The first
// interrupt of a run asks the network to stop at the next tick boundary, so
// that results can still be written. Any other interrupt gets the default
// treatment and ends the process.
package interrupt

import (
	"os"
	"os/signal"
	"sync"

	"go.uber.org/zap"
)

// A Stopper is something that runs and can be asked to stop.
type Stopper interface {
	IsRunning() bool
	Stop() bool
}

// A Handler listens to interrupts on behalf of a Stopper.
type Handler struct {
	stopper Stopper
	logger  *zap.Logger
	raise   func(sig os.Signal)

	lock    sync.Mutex
	signals chan os.Signal
	done    chan struct{}
}

// NewHandler creates a handler for s. A nil logger disables logging.
func NewHandler(s Stopper, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{
		stopper: s,
		logger:  logger,
		raise:   raiseDefault,
	}
}

// Start begins listening to SIGINT.
func (h *Handler) Start() {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.signals != nil {
		return
	}

	h.signals = make(chan os.Signal, 1)
	h.done = make(chan struct{})
	signal.Notify(h.signals, os.Interrupt)

	go h.listen(h.signals, h.done)
}

// Close stops listening. Interrupts get the default treatment afterwards.
func (h *Handler) Close() {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.signals == nil {
		return
	}

	signal.Stop(h.signals)
	close(h.done)
	h.signals = nil
}

func (h *Handler) listen(signals <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case sig := <-signals:
			h.Handle(sig)
		case <-done:
			return
		}
	}
}

// Handle reacts to one signal. It returns true if the signal was turned
// into a stop request.
func (h *Handler) Handle(sig os.Signal) bool {
	if h.stopper.IsRunning() && h.stopper.Stop() {
		h.logger.Info("interrupt received, stopping at the next tick",
			zap.String("signal", sig.String()))
		return true
	}

	h.logger.Info("interrupt received, exiting",
		zap.String("signal", sig.String()))

	h.Close()
	h.raise(sig)

	return false
}

func raiseDefault(sig os.Signal) {
	signal.Reset(sig)

	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		os.Exit(130)
	}

	if err := p.Signal(sig); err != nil {
		os.Exit(130)
	}
}
