package bootstrap

import (
	"fmt"

	"vfi-client/internal/domain"
	"vfi-client/internal/jobs"
	"vfi-client/internal/output"
)

// jobSink maps session callbacks for one job to events and saved frames.
type jobSink struct {
	app   *App
	saver *output.FrameSaver

	ready chan struct{}
	jobID string
}

func newJobSink(app *App, settings domain.Settings) *jobSink {
	s := &jobSink{app: app, ready: make(chan struct{})}
	if settings.SaveFrames && settings.OutputDir != "" {
		s.saver = output.NewFrameSaver(settings.OutputDir)
	}
	return s
}

// bind sets the job ID once Start returns; callbacks wait for it.
func (s *jobSink) bind(jobID string) {
	s.jobID = jobID
	close(s.ready)
}

func (s *jobSink) id() string {
	<-s.ready
	return s.jobID
}

func (s *jobSink) OnState(state domain.JobState) {
	s.app.publishEvent(jobs.Event{
		JobID:   s.id(),
		Type:    jobs.EventTypeState,
		State:   state,
		Message: stateMessage(state),
	})
}

func (s *jobSink) OnProgress(percent float64) {
	s.app.publishEvent(jobs.Event{
		JobID:    s.id(),
		Type:     jobs.EventTypeProgress,
		State:    domain.JobStateProcessing,
		Progress: percent,
	})
}

func (s *jobSink) OnFrame(frame domain.DecodedFrame) {
	jobID := s.id()
	event := jobs.Event{
		JobID:       jobID,
		Type:        jobs.EventTypeFrame,
		Position:    frame.Position,
		ContentType: frame.ContentType,
	}

	if s.saver != nil {
		path, err := s.saver.Save(jobID, frame)
		if err != nil {
			s.app.logger.Warn().Err(err).Str("job_id", jobID).Int("position", frame.Position).Msg("app: frame not saved")
			s.app.publishEvent(jobs.Event{
				JobID:    jobID,
				Type:     jobs.EventTypeError,
				Position: frame.Position,
				Message:  fmt.Sprintf("save frame: %v", err),
			})
		}
		event.FramePath = path
	}

	s.app.publishEvent(event)
}

func (s *jobSink) OnComplete(result domain.JobResult) {
	s.app.publishEvent(jobs.Event{
		JobID:      s.id(),
		Type:       jobs.EventTypeResult,
		State:      domain.JobStateCompleted,
		Message:    "Job completed",
		Progress:   result.Progress,
		RemotePath: result.RemotePath,
		Frames:     len(result.Frames),
	})
}

func (s *jobSink) OnError(err error) {
	s.app.publishEvent(jobs.Event{
		JobID:   s.id(),
		Type:    jobs.EventTypeError,
		Message: err.Error(),
	})
}

// stateMessage is the human-readable line stored with state events.
func stateMessage(state domain.JobState) string {
	switch state {
	case domain.JobStateConnecting:
		return "Connecting to server"
	case domain.JobStateUploading:
		return "Uploading"
	case domain.JobStateAwaitingProcessing:
		return "Waiting for server"
	case domain.JobStateProcessing:
		return "Processing"
	case domain.JobStateCompleted:
		return "Job completed"
	case domain.JobStateFailed:
		return "Job failed"
	case domain.JobStateCancelled:
		return "Job cancelled"
	default:
		return string(state)
	}
}
