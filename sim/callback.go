package sim

// A Callback is a unit of work that the network invokes once for every tick
// of the clock it is bound to. A callback must not call back into the
// network that runs it.
type Callback interface {
	Run() error
}

// CallbackFunc turns a function into a Callback.
type CallbackFunc func() error

// Run calls f.
func (f CallbackFunc) Run() error {
	return f()
}

// Do turns a function that cannot fail into a Callback.
func Do(f func()) Callback {
	return CallbackFunc(func() error {
		f()
		return nil
	})
}

// Binding associates a callback with the clock that drives it.
type Binding struct {
	Clock    *Clock
	Callback Callback
}
