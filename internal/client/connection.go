package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"vfi-client/internal/domain"
	"vfi-client/internal/jobs"
	"vfi-client/internal/progress"
	"vfi-client/internal/protocol"
	"vfi-client/internal/upload"
)

// ErrCancelled is the terminal error of a job cancelled by the client.
var ErrCancelled = errors.New("job cancelled")

const closeGrace = time.Second

// Connection drives one job over one socket.
type Connection struct {
	id        string
	gen       uint64
	req       domain.JobRequest
	url       string
	handshake []byte
	sink      ResultSink
	session   *Session
	estimator progress.Estimator
	logger    zerolog.Logger
	machine   *jobs.Machine
	done      chan struct{}

	mu        sync.Mutex
	ws        *websocket.Conn
	result    domain.JobResult
	err       error
	stopRun   context.CancelFunc
	closeOnce sync.Once

	// outbox holds sink callbacks queued under mu in transition order.
	outbox    []func()
	deliverMu sync.Mutex
}

// init runs before the connection is shared, so it does not take c.mu.
func (c *Connection) init() {
	c.machine = jobs.NewMachine()
	_ = c.machine.Start(c.id, c.req.Kind)
	c.emitStateLocked(domain.JobStateConnecting)
}

// run dials, uploads and then reads until a terminal state. It is the only
// goroutine that dispatches inbound messages for this connection.
func (c *Connection) run(ctx context.Context) {
	defer close(c.done)
	defer c.flush()
	defer c.stopRun()

	// The caller's context ending is treated as a cancel.
	stop := context.AfterFunc(ctx, func() { _ = c.Cancel() })
	defer stop()
	defer c.closeSocket()

	// Connecting was queued by init so it always precedes a cancel.
	c.deliver()

	ws, _, err := c.session.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.fail(&protocol.TransportError{Op: "dial " + c.url, Err: err})
		return
	}
	if !c.attach(ws) {
		_ = ws.Close()
		return
	}
	c.logger.Info().Str("url", c.url).Msg("job: socket open")

	if !c.advance(domain.JobStateUploading) {
		return
	}
	if err := c.send(ctx, ws); err != nil {
		c.fail(&protocol.TransportError{Op: "upload", Err: err})
		return
	}
	if !c.advance(domain.JobStateAwaitingProcessing) {
		return
	}

	c.readLoop(ws)
}

func (c *Connection) attach(ws *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.liveLocked() {
		return false
	}
	c.ws = ws
	c.result.Status = domain.ResultStatusStart
	return true
}

// send streams the payload when present, otherwise only the handshake. Both end with the sentinel.
func (c *Connection) send(ctx context.Context, ws *websocket.Conn) error {
	c.mu.Lock()
	payload := c.req.Payload
	c.req.Payload = nil
	c.mu.Unlock()

	if payload == nil {
		return upload.SendHandshake(ws, c.handshake)
	}

	stats, err := c.session.uploader.Upload(ctx, ws, c.handshake, payload.Data)
	if err != nil {
		return err
	}
	c.logger.Info().Int("chunks", stats.Chunks).Int("bytes", stats.Bytes).Msg("job: upload finished")
	return nil
}

func (c *Connection) readLoop(ws *websocket.Conn) {
	idle := c.session.opts.IdleTimeout
	for {
		if idle > 0 {
			_ = ws.SetReadDeadline(time.Now().Add(idle))
		}
		kind, data, err := ws.ReadMessage()
		if err != nil {
			c.closed(err)
			return
		}
		if c.dispatch(kind, data) {
			return
		}
	}
}

// dispatch routes one inbound message and reports whether the job has ended.
func (c *Connection) dispatch(kind int, data []byte) bool {
	switch kind {
	case websocket.TextMessage:
		msg, err := protocol.ParseControl(data)
		if err != nil {
			c.fail(err)
			return true
		}
		return c.handleControl(msg)
	case websocket.BinaryMessage:
		c.handleFrame(data)
		return false
	default:
		c.logger.Debug().Int("type", kind).Msg("job: ignoring message")
		return false
	}
}

func (c *Connection) handleControl(msg protocol.Control) bool {
	c.logger.Debug().Str("status", string(msg.Status)).Msg("job: control message")

	switch msg.Status {
	case protocol.StatusStartProcess, protocol.StatusProcessing:
		pct := c.estimator.Estimate(msg)

		c.mu.Lock()
		if !c.liveLocked() {
			c.mu.Unlock()
			return true
		}
		entered := c.machine.State() != domain.JobStateProcessing
		if err := c.machine.Transition(domain.JobStateProcessing); err != nil {
			c.logger.Warn().Err(err).Msg("job: progress before upload finished")
			entered = false
		}
		c.result.Progress = pct
		if entered {
			c.emitStateLocked(domain.JobStateProcessing)
		}
		c.emitLocked(func() { c.sink.OnProgress(pct) })
		c.mu.Unlock()

		c.deliver()
		return false

	case protocol.StatusCompleted:
		c.mu.Lock()
		if !c.liveLocked() {
			c.mu.Unlock()
			return true
		}
		if err := c.machine.Transition(domain.JobStateCompleted); err != nil {
			c.mu.Unlock()
			c.fail(&protocol.ProtocolError{Message: "completed out of order", Err: err})
			return true
		}
		c.result.RemotePath = msg.ImgPath
		c.result.Status = domain.ResultStatusSuccess
		c.result.FPS = msg.FPS
		c.result.PixFmt = msg.PixFmt
		c.result.Progress = 100
		snapshot := c.result.Clone()
		c.emitStateLocked(domain.JobStateCompleted)
		c.emitLocked(func() { c.sink.OnComplete(snapshot) })
		c.mu.Unlock()

		c.closeSocket()
		c.logger.Info().Int("frames", len(snapshot.Frames)).Str("remote_path", snapshot.RemotePath).Msg("job: completed")
		c.deliver()
		return true

	case protocol.StatusError:
		c.fail(&protocol.ProtocolError{Message: msg.Message})
		return true

	default:
		c.fail(&protocol.ProtocolError{Message: "unhandled control status " + string(msg.Status)})
		return true
	}
}

// handleFrame decodes synchronously so frames are appended in arrival order.
func (c *Connection) handleFrame(data []byte) {
	img, decodeErr := c.session.decoder.Decode(data, c.req.Params.Extv, c.req.Kind.FrameHeader())

	c.mu.Lock()
	if !c.liveLocked() {
		c.mu.Unlock()
		return
	}
	position := len(c.result.Frames)
	if decodeErr != nil {
		frameErr := &protocol.DecodeError{Position: position, Err: decodeErr}
		c.emitLocked(func() { c.sink.OnError(frameErr) })
		c.mu.Unlock()
		c.logger.Warn().Err(decodeErr).Int("position", position).Msg("job: frame dropped")
		c.deliver()
		return
	}
	frame := domain.DecodedFrame{
		Position:    position,
		ContentType: img.ContentType,
		Data:        img.Data,
		Transcoded:  img.Transcoded,
	}
	c.result.Frames = append(c.result.Frames, frame)
	c.emitLocked(func() { c.sink.OnFrame(frame) })
	c.mu.Unlock()

	c.deliver()
}

// closed handles the end of the read side. Closes after a terminal state are expected.
func (c *Connection) closed(err error) {
	c.mu.Lock()
	live := c.liveLocked()
	c.mu.Unlock()
	if !live {
		c.logger.Debug().Err(err).Msg("job: socket closed")
		return
	}

	op := "read"
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		op = "connection closed before completion"
	}
	c.fail(&protocol.TransportError{Op: op, Err: err})
}

// fail moves a live job to failed, closes the socket and reports err once.
func (c *Connection) fail(err error) {
	c.mu.Lock()
	if !c.liveLocked() {
		c.mu.Unlock()
		return
	}
	if terr := c.machine.Fail(); terr != nil {
		c.mu.Unlock()
		return
	}
	c.result.Status = domain.ResultStatusError
	c.err = err
	c.emitStateLocked(domain.JobStateFailed)
	c.emitLocked(func() { c.sink.OnError(err) })
	c.mu.Unlock()

	c.closeSocket()
	c.logger.Error().Err(err).Msg("job: failed")
	c.deliver()
}

// Cancel closes the socket from the client side. Messages that arrive later are ignored.
func (c *Connection) Cancel() error {
	c.mu.Lock()
	if err := c.machine.Cancel(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.err = ErrCancelled
	c.emitStateLocked(domain.JobStateCancelled)
	c.mu.Unlock()

	c.stopRun()
	c.closeSocket()
	c.logger.Info().Msg("job: cancelled")
	c.deliver()
	return nil
}

// abandon ends a superseded connection regardless of its state.
func (c *Connection) abandon() {
	if err := c.Cancel(); err != nil && !errors.Is(err, jobs.ErrNoRunningJob) {
		c.logger.Warn().Err(err).Msg("job: abandon")
	}
	c.closeSocket()
}

func (c *Connection) closeSocket() {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return
	}

	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		_ = ws.Close()
	})
}

// liveLocked reports whether inbound data may still mutate this job. Callers hold c.mu.
func (c *Connection) liveLocked() bool {
	return c.session.isCurrent(c.gen) && !c.machine.State().Terminal()
}

func (c *Connection) advance(state domain.JobState) bool {
	c.mu.Lock()
	if !c.liveLocked() {
		c.mu.Unlock()
		return false
	}
	if err := c.machine.Transition(state); err != nil {
		c.mu.Unlock()
		c.logger.Warn().Err(err).Msg("job: transition rejected")
		return false
	}
	c.emitStateLocked(state)
	c.mu.Unlock()

	c.deliver()
	return true
}

// emitLocked queues fn for delivery. Callers hold c.mu, so callbacks are
// ordered exactly as the transitions and mutations that produced them.
func (c *Connection) emitLocked(fn func()) {
	c.outbox = append(c.outbox, fn)
}

func (c *Connection) emitStateLocked(state domain.JobState) {
	if listener, ok := c.sink.(StateListener); ok {
		c.emitLocked(func() { listener.OnState(state) })
	}
}

// deliver runs queued callbacks outside c.mu. One caller drains at a time;
// a call made while another is draining, including from inside a callback,
// leaves its work to that caller.
func (c *Connection) deliver() {
	for {
		if !c.deliverMu.TryLock() {
			return
		}
		c.drain()
		c.deliverMu.Unlock()

		// Work queued after drain returned may have been skipped by its producer.
		c.mu.Lock()
		pending := len(c.outbox) > 0
		c.mu.Unlock()
		if !pending {
			return
		}
	}
}

// flush waits for any in-progress delivery and drains what is left, so Done
// only closes once every callback has run.
func (c *Connection) flush() {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	c.drain()
}

// drain runs callbacks until the outbox is empty. Callers hold deliverMu.
func (c *Connection) drain() {
	for {
		c.mu.Lock()
		if len(c.outbox) == 0 {
			c.mu.Unlock()
			return
		}
		fn := c.outbox[0]
		c.outbox = c.outbox[1:]
		c.mu.Unlock()
		fn()
	}
}
