// Package debounce models a debounce-with-deadline as an explicit state
// machine: idle, or pending(since, deadline) with one armed wake-up.
package debounce

import (
	"sync"
	"time"

	"tabtrail/internal/platform/clock"
)

type Phase int

const (
	Idle Phase = iota
	Pending
)

// Window describes how long to wait after the last change (Quiet) and the
// latest a pending burst may be held since its first change (MaxWait).
type Window struct {
	Quiet   time.Duration
	MaxWait time.Duration
}

// State is the pure part of the debouncer.
type State struct {
	Phase    Phase
	Since    time.Time
	Last     time.Time
	Deadline time.Time
	Count    int
}

// Touch records a change at now and returns when the burst should fire.
func (s *State) Touch(now time.Time, w Window) time.Time {
	if s.Phase == Idle {
		s.Phase = Pending
		s.Since = now
		s.Deadline = now.Add(w.MaxWait)
		s.Count = 0
	}
	s.Last = now
	s.Count++
	return s.WakeAt(w)
}

// WakeAt is the earlier of the quiet-period expiry and the hard deadline.
func (s State) WakeAt(w Window) time.Time {
	quiet := s.Last.Add(w.Quiet)
	if quiet.After(s.Deadline) {
		return s.Deadline
	}
	return quiet
}

// Due reports whether a pending burst should fire at now.
func (s State) Due(now time.Time, w Window) bool {
	return s.Phase == Pending && !now.Before(s.WakeAt(w))
}

func (s *State) Reset() {
	*s = State{}
}

// Debouncer arms a single timer on the given clock for the state machine.
// Every re-arm stops the previous timer first. Fire runs on whatever
// control flow the clock delivers callbacks to.
type Debouncer struct {
	mu     sync.Mutex
	clock  clock.Clock
	window Window
	fire   func(reason string, count int)
	state  State
	reason string
	timer  clock.Timer
	gen    uint64
}

func New(clk clock.Clock, window Window, fire func(reason string, count int)) *Debouncer {
	return &Debouncer{clock: clk, window: window, fire: fire}
}

// Schedule records a change and (re)arms the wake-up.
func (d *Debouncer) Schedule(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.clock.Now()
	wake := d.state.Touch(now, d.window)
	d.reason = reason
	d.armLocked(wake.Sub(now))
}

func (d *Debouncer) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Cancel drops the pending burst without firing.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.state.Reset()
}

// Flush fires a pending burst immediately. It reports whether anything was pending.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if d.state.Phase != Pending {
		d.mu.Unlock()
		return false
	}
	reason, count := d.reason, d.state.Count
	d.stopLocked()
	d.state.Reset()
	d.mu.Unlock()
	d.fire(reason, count)
	return true
}

func (d *Debouncer) armLocked(delay time.Duration) {
	d.stopLocked()
	if delay < 0 {
		delay = 0
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(delay, func() { d.wake(gen) })
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) wake(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.state.Phase != Pending {
		d.mu.Unlock()
		return
	}
	now := d.clock.Now()
	if !d.state.Due(now, d.window) {
		d.armLocked(d.state.WakeAt(d.window).Sub(now))
		d.mu.Unlock()
		return
	}
	reason, count := d.reason, d.state.Count
	d.timer = nil
	d.state.Reset()
	d.mu.Unlock()
	d.fire(reason, count)
}
