package client

import "vfi-client/internal/domain"

// ResultSink receives the output of one job. Inbound messages are delivered
// one at a time in arrival order; Cancel reports its state change from the
// caller's goroutine, so implementations must tolerate that overlap.
type ResultSink interface {
	OnFrame(frame domain.DecodedFrame)
	OnProgress(percent float64)
	OnComplete(result domain.JobResult)
	OnError(err error)
}

// StateListener is implemented by sinks that also follow lifecycle changes.
type StateListener interface {
	OnState(state domain.JobState)
}

// SinkFuncs adapts plain functions to ResultSink and StateListener. Nil fields are skipped.
type SinkFuncs struct {
	Frame    func(frame domain.DecodedFrame)
	Progress func(percent float64)
	Complete func(result domain.JobResult)
	Error    func(err error)
	State    func(state domain.JobState)
}

// OnFrame forwards to Frame.
func (s SinkFuncs) OnFrame(frame domain.DecodedFrame) {
	if s.Frame != nil {
		s.Frame(frame)
	}
}

// OnProgress forwards to Progress.
func (s SinkFuncs) OnProgress(percent float64) {
	if s.Progress != nil {
		s.Progress(percent)
	}
}

// OnComplete forwards to Complete.
func (s SinkFuncs) OnComplete(result domain.JobResult) {
	if s.Complete != nil {
		s.Complete(result)
	}
}

// OnError forwards to Error.
func (s SinkFuncs) OnError(err error) {
	if s.Error != nil {
		s.Error(err)
	}
}

// OnState forwards to State.
func (s SinkFuncs) OnState(state domain.JobState) {
	if s.State != nil {
		s.State(state)
	}
}
