package client

import (
	"context"

	"vfi-client/internal/domain"
)

// Handle is the caller's reference to one started job.
type Handle struct {
	conn *Connection
}

// ID returns the job identifier.
func (h *Handle) ID() string {
	return h.conn.id
}

// Generation returns the session generation the job was started under.
func (h *Handle) Generation() uint64 {
	return h.conn.gen
}

// Job returns a snapshot of the job identity and state.
func (h *Handle) Job() domain.Job {
	return h.conn.machine.Current()
}

// State returns the current lifecycle state.
func (h *Handle) State() domain.JobState {
	return h.conn.machine.State()
}

// Result returns a copy of everything received so far.
func (h *Handle) Result() domain.JobResult {
	h.conn.mu.Lock()
	defer h.conn.mu.Unlock()
	return h.conn.result.Clone()
}

// Err returns the terminal error: nil while running or after completion.
func (h *Handle) Err() error {
	h.conn.mu.Lock()
	defer h.conn.mu.Unlock()
	return h.conn.err
}

// Done is closed once the connection goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.conn.done
}

// Wait blocks until the job ends or ctx is done.
func (h *Handle) Wait(ctx context.Context) (domain.JobResult, error) {
	select {
	case <-h.conn.done:
		return h.Result(), h.Err()
	case <-ctx.Done():
		return h.Result(), ctx.Err()
	}
}

// Cancel force-closes the job's socket. It fails with jobs.ErrNoRunningJob
// once the job has reached a terminal state.
func (h *Handle) Cancel() error {
	return h.conn.Cancel()
}
