package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"vfi-client/internal/domain"
)

var (
	// ErrJobAlreadyRunning is returned when Start is called on a machine that left idle.
	ErrJobAlreadyRunning = errors.New("job already running")
	// ErrNoRunningJob is returned when cancel is requested outside an active state.
	ErrNoRunningJob = errors.New("no running job")
	// ErrInvalidTransition is returned for edges the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid transition")
)

// Machine is the lifecycle of one job. Terminal states accept no further transitions.
type Machine struct {
	mu      sync.RWMutex
	current domain.Job
	now     func() time.Time
}

// NewMachine creates a machine in idle state.
func NewMachine() *Machine {
	return &Machine{
		current: domain.Job{State: domain.JobStateIdle},
		now:     time.Now,
	}
}

// Start leaves idle for connecting under the given job identity.
func (m *Machine) Start(jobID string, kind domain.JobKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.State != domain.JobStateIdle {
		return ErrJobAlreadyRunning
	}

	m.current = domain.Job{
		ID:        jobID,
		Kind:      kind,
		State:     domain.JobStateConnecting,
		StartedAt: m.now().UTC(),
	}
	return nil
}

// Transition validates and applies one edge. Re-entering the current state is a no-op.
func (m *Machine) Transition(state domain.JobState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(state)
}

// Fail moves any non-terminal state to failed.
func (m *Machine) Fail() error {
	return m.Transition(domain.JobStateFailed)
}

// Cancel moves a non-terminal job to cancelled.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isActive(m.current.State) {
		return ErrNoRunningJob
	}
	m.current.State = domain.JobStateCancelled
	return nil
}

// Current returns a snapshot of the job.
func (m *Machine) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// State returns the current lifecycle state.
func (m *Machine) State() domain.JobState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.State
}

// IsRunning reports whether the job is between start and a terminal state.
func (m *Machine) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isActive(m.current.State)
}

func (m *Machine) transitionLocked(state domain.JobState) error {
	from := m.current.State
	if from == state && !from.Terminal() {
		return nil
	}
	if !isValidTransition(from, state) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, state)
	}
	m.current.State = state
	return nil
}

// isActive checks if a state is a running, non-terminal stage.
func isActive(state domain.JobState) bool {
	switch state {
	case domain.JobStateConnecting, domain.JobStateUploading,
		domain.JobStateAwaitingProcessing, domain.JobStateProcessing:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed lifecycle edges.
func isValidTransition(from, to domain.JobState) bool {
	if isActive(from) && (to == domain.JobStateFailed || to == domain.JobStateCancelled) {
		return true
	}

	switch from {
	case domain.JobStateIdle:
		return to == domain.JobStateConnecting
	case domain.JobStateConnecting:
		return to == domain.JobStateUploading
	case domain.JobStateUploading:
		return to == domain.JobStateAwaitingProcessing
	case domain.JobStateAwaitingProcessing:
		// Extraction jobs go straight to completed without a start message.
		return to == domain.JobStateProcessing || to == domain.JobStateCompleted
	case domain.JobStateProcessing:
		return to == domain.JobStateCompleted
	default:
		return false
	}
}
