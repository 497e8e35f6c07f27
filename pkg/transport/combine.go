package transport

import "errors"

// Combine merges several listeners into one. Channels accepted by any
// underlying listener flow to the combined accept callback. Start starts
// the listeners in order and stops the ones already started if a later
// one fails, so a combined Start never leaves a partial set running.
func Combine(listeners ...Listener) Listener {
	return &multiListener{listeners: listeners}
}

type multiListener struct {
	listeners []Listener
}

func (m *multiListener) OnChannel(fn func(Channel)) {
	for _, l := range m.listeners {
		l.OnChannel(fn)
	}
}

func (m *multiListener) Start() error {
	for i, l := range m.listeners {
		if err := l.Start(); err != nil {
			for j := i - 1; j >= 0; j-- {
				m.listeners[j].Stop()
			}
			return err
		}
	}
	return nil
}

func (m *multiListener) Stop() error {
	var errs []error
	for _, l := range m.listeners {
		if err := l.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
