// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"sync"
)

// ExecutionPhase is the lifecycle state of a Statement.
type ExecutionPhase int

const (
	// PhaseIdle is a statement that has not run yet.
	PhaseIdle ExecutionPhase = iota
	// PhaseRunning is a statement with a batch in progress.
	PhaseRunning
	// PhaseCompleted is a statement whose last batch ran to the end.
	PhaseCompleted
	// PhaseCancelled is a statement whose last batch was cancelled.
	PhaseCancelled
	// PhaseFailed is a statement whose last batch stopped on an error.
	PhaseFailed
	// PhaseClosed is a closed statement.
	PhaseClosed
)

func (p ExecutionPhase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseRunning:
		return "RUNNING"
	case PhaseCompleted:
		return "COMPLETED"
	case PhaseCancelled:
		return "CANCELLED"
	case PhaseFailed:
		return "FAILED"
	case PhaseClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// executionState tracks the labels of one statement. The executing goroutine
// and a goroutine calling Cancel or Close share it; every access goes
// through its transition methods.
type executionState struct {
	mu              sync.Mutex
	phase           ExecutionPhase
	running         string
	eligible        map[string]struct{}
	cancelled       map[string]struct{}
	cancelRequested bool
	async           bool
	// asyncLabel is the label submitted by the last asynchronous execution;
	// Cancel aborts it while the statement is not running anything else.
	asyncLabel string
}

func newExecutionState() *executionState {
	return &executionState{phase: PhaseIdle}
}

// begin moves an idle or finished statement to running with every label of
// the batch eligible.
func (s *executionState) begin(labels []string, async bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.phase {
	case PhaseClosed:
		return ErrStatementClosed
	case PhaseRunning:
		return ErrStatementBusy
	}
	s.phase = PhaseRunning
	s.running = ""
	s.eligible = make(map[string]struct{}, len(labels))
	for _, l := range labels {
		s.eligible[l] = struct{}{}
	}
	s.cancelled = make(map[string]struct{})
	s.cancelRequested = false
	s.async = async
	s.asyncLabel = ""
	return nil
}

// startIssue marks label as running. It returns false when the label is no
// longer eligible, in which case the sub-statement must be skipped.
func (s *executionState) startIssue(label string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseRunning {
		return false
	}
	if _, ok := s.eligible[label]; !ok {
		return false
	}
	s.running = label
	return true
}

// finishIssue clears the running label and reports whether it was
// cancelled while in flight.
func (s *executionState) finishIssue(label string) (cancelled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.eligible, label)
	if s.running == label {
		s.running = ""
	}
	_, cancelled = s.cancelled[label]
	if cancelled {
		delete(s.cancelled, label)
	}
	return cancelled
}

// submitted records the label of an asynchronous submission.
func (s *executionState) submitted(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.async {
		s.asyncLabel = label
	}
}

// cancel drops every label that has not been issued and returns the label
// to abort remotely, if any.
func (s *executionState) cancel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseRunning {
		label := s.asyncLabel
		s.asyncLabel = ""
		return label
	}
	s.cancelRequested = true
	for l := range s.eligible {
		if l != s.running {
			delete(s.eligible, l)
		}
	}
	if s.running != "" {
		s.cancelled[s.running] = struct{}{}
	}
	return s.running
}

// end finishes the batch. The resulting phase is cancelled when Cancel was
// called during the batch, failed when err is set, completed otherwise.
func (s *executionState) end(err error) ExecutionPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseRunning {
		return s.phase
	}
	switch {
	case s.cancelRequested || IsCancellation(err):
		s.phase = PhaseCancelled
	case err != nil:
		s.phase = PhaseFailed
	default:
		s.phase = PhaseCompleted
	}
	s.running = ""
	s.eligible = nil
	s.cancelled = nil
	return s.phase
}

// close moves to closed for good and returns the label to abort, if any.
func (s *executionState) close() (label string, alreadyClosed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		return "", true
	}
	label = s.running
	s.phase = PhaseClosed
	s.eligible = nil
	s.running = ""
	return label, false
}

func (s *executionState) current() ExecutionPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *executionState) runningLabel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
