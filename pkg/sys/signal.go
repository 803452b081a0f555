package sys

import (
	"os"
	"os/signal"
)

// Signal wraps an os.Signal channel registered for a fixed set of shutdown signals
type Signal struct {
	ch chan os.Signal
}

// NewSignal() starts relaying the given signals. With no signals every incoming signal is relayed.
func NewSignal(sigs ...os.Signal) *Signal {
	s := &Signal{ch: make(chan os.Signal, 1)}
	signal.Notify(s.ch, sigs...)
	return s
}

// ReceiveShutDown() blocks until one of the registered signals arrives
func (s *Signal) ReceiveShutDown() os.Signal {
	return <-s.ch
}

// Stop() stops relaying signals to this instance
func (s *Signal) Stop() {
	signal.Stop(s.ch)
}
