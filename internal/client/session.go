package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"vfi-client/internal/decode"
	"vfi-client/internal/domain"
	"vfi-client/internal/progress"
	"vfi-client/internal/protocol"
	"vfi-client/internal/upload"
)

// Dialer opens the job socket. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Options configures a Session.
type Options struct {
	Host          string
	Secure        bool
	ChunkSize     int
	ProgressSteps int
	// IdleTimeout bounds the wait for each inbound message; zero waits forever.
	IdleTimeout time.Duration
	Dialer      Dialer
	Logger      zerolog.Logger
}

// Session owns at most one active connection. Starting a job supersedes the
// previous one and bumps the generation, so late messages from the old socket
// are dropped.
type Session struct {
	opts     Options
	dialer   Dialer
	decoder  *decode.Decoder
	uploader *upload.Uploader
	logger   zerolog.Logger

	generation atomic.Uint64

	mu      sync.Mutex
	current *Connection
}

// NewSession builds a session with the default websocket dialer when none is given.
func NewSession(opts Options) *Session {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 30 * time.Second,
		}
	}

	return &Session{
		opts:     opts,
		dialer:   dialer,
		decoder:  decode.New(opts.Logger),
		uploader: upload.NewUploader(opts.ChunkSize, opts.Logger),
		logger:   opts.Logger,
	}
}

// Start validates req, force-closes any active job and runs the new one in the
// background. The returned handle tracks the new job.
func (s *Session) Start(ctx context.Context, req domain.JobRequest, sink ResultSink) (*Handle, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", protocol.ErrUnknownKind, req.Kind)
	}
	if req.Payload != nil && len(req.Payload.Data) == 0 {
		return nil, upload.ErrEmptyPayload
	}
	endpoint, err := protocol.EndpointURL(s.opts.Host, s.opts.Secure, req.Kind)
	if err != nil {
		return nil, err
	}
	handshake, err := protocol.Handshake(req)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = SinkFuncs{}
	}

	s.mu.Lock()
	prev := s.current
	gen := s.generation.Add(1)
	conn := &Connection{
		id:        uuid.NewString(),
		gen:       gen,
		req:       req,
		url:       endpoint,
		handshake: handshake,
		sink:      sink,
		session:   s,
		estimator: progress.ForKind(req.Kind, s.opts.ProgressSteps, s.logger),
		done:      make(chan struct{}),
	}
	conn.logger = s.logger.With().
		Str("job_id", conn.id).
		Str("kind", string(req.Kind)).
		Uint64("generation", gen).
		Logger()
	runCtx, stopRun := context.WithCancel(ctx)
	conn.stopRun = stopRun
	conn.init()
	s.current = conn
	s.mu.Unlock()

	if prev != nil {
		prev.abandon()
	}

	go conn.run(runCtx)
	return &Handle{conn: conn}, nil
}

// Cancel force-closes the job behind h.
func (s *Session) Cancel(h *Handle) error {
	if h == nil {
		return fmt.Errorf("nil job handle")
	}
	return h.Cancel()
}

// Current returns the most recently started job, or nil.
func (s *Session) Current() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return &Handle{conn: s.current}
}

// Close cancels the active job, if any.
func (s *Session) Close() {
	s.mu.Lock()
	conn := s.current
	s.mu.Unlock()
	if conn != nil {
		conn.abandon()
	}
}

func (s *Session) isCurrent(gen uint64) bool {
	return s.generation.Load() == gen
}
