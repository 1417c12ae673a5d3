// Package lifecycle tracks the STOPPED/RUNNING state of a long-running
// goroutine such as a worker or the actuator scheduler.
package lifecycle

import (
	"errors"
	"sync/atomic"
)

// ErrAlreadyRunning is returned when Run is called on a component that is
// already running.
var ErrAlreadyRunning = errors.New("already running")

// Status is the observable state of a component.
type Status int32

const (
	Stopped Status = iota
	Running
)

func (s Status) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// State is owned by a single component instance. The zero value is Stopped.
type State struct {
	status atomic.Int32
	runs   atomic.Uint64
	err    atomic.Pointer[error]
}

// Start moves the state from Stopped to Running. It returns
// ErrAlreadyRunning if the component is already running.
func (s *State) Start() error {
	if !s.status.CompareAndSwap(int32(Stopped), int32(Running)) {
		return ErrAlreadyRunning
	}
	s.runs.Add(1)
	s.err.Store(nil)
	return nil
}

// Stop moves the state back to Stopped and records the reason the run ended.
// A nil err means a cooperative stop.
func (s *State) Stop(err error) {
	if err != nil {
		s.err.Store(&err)
	}
	s.status.Store(int32(Stopped))
}

// Status returns the current status.
func (s *State) Status() Status {
	return Status(s.status.Load())
}

// IsRunning reports whether the component is running.
func (s *State) IsRunning() bool {
	return s.Status() == Running
}

// Err returns the error that ended the last run, if any.
func (s *State) Err() error {
	if p := s.err.Load(); p != nil {
		return *p
	}
	return nil
}

// Runs returns how many times the component has been started.
func (s *State) Runs() uint64 {
	return s.runs.Load()
}
