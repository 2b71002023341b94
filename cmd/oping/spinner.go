// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"sync"
	"time"
)

// spinner shows that a send is in flight, advancing its (braille) phase in
// fixed intervals and then calling back to get the display updated.
type spinner struct {
	phases []string
	done   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	phase  int
}

// newSpinner returns a new spinner, not spinning yet.
func newSpinner() *spinner {
	phases := []string{}
	for _, r := range "⠉⠘⠰⠤⠆⠃" {
		phases = append(phases, string(r))
	}
	return &spinner{phases: phases}
}

// Phase returns the spinner string for the current phase.
func (s *spinner) Phase() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phases[s.phase]
}

// Start spinning in steps every interval, calling tick after each step,
// until Stop gets called.
func (s *spinner) Start(interval time.Duration, tick func()) {
	s.done = make(chan struct{})
	ticker := time.NewTicker(interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				s.phase = (s.phase + 1) % len(s.phases)
				s.mu.Unlock()
				tick()
			case <-s.done:
				return
			}
		}
	}()
}

// Stop spinning and wait for the background goroutine to terminate. Stopping
// a spinner that isn't spinning is a no-op.
func (s *spinner) Stop() {
	if s.done == nil {
		return
	}
	close(s.done)
	s.done = nil
	s.wg.Wait()
}
