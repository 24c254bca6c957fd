package upload

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"vfi-client/internal/protocol"
)

// DefaultChunkSize is the largest binary message the uploader sends.
const DefaultChunkSize = 1 << 20

// MessageWriter is the ordered channel the uploader writes to.
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Stats summarizes one finished upload.
type Stats struct {
	Chunks int
	Bytes  int
}

// Uploader streams one payload as handshake, chunks, then the sentinel.
type Uploader struct {
	chunkSize int
	logger    zerolog.Logger
}

// NewUploader creates an uploader; non-positive sizes use DefaultChunkSize.
func NewUploader(chunkSize int, logger zerolog.Logger) *Uploader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Uploader{chunkSize: chunkSize, logger: logger}
}

// ChunkSize returns the configured chunk size.
func (u *Uploader) ChunkSize() int {
	return u.chunkSize
}

// Upload writes handshake, ceil(len(data)/chunkSize) binary chunks in order and
// the sentinel. It stops between chunks when ctx is done.
func (u *Uploader) Upload(ctx context.Context, w MessageWriter, handshake []byte, data []byte) (Stats, error) {
	var stats Stats

	if err := w.WriteMessage(websocket.TextMessage, handshake); err != nil {
		return stats, fmt.Errorf("send handshake: %w", err)
	}

	chunks := lo.Chunk(data, u.chunkSize)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := w.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return stats, fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}
		stats.Chunks++
		stats.Bytes += len(chunk)
		u.logger.Debug().Int("chunk", i+1).Int("of", len(chunks)).Int("bytes", len(chunk)).Msg("upload: sent chunk")
	}

	if err := SendSentinel(w); err != nil {
		return stats, err
	}
	u.logger.Debug().Int("chunks", stats.Chunks).Int("bytes", stats.Bytes).Msg("upload: sent all data")
	return stats, nil
}

// SendHandshake writes the handshake and the sentinel with no binary data.
func SendHandshake(w MessageWriter, handshake []byte) error {
	if err := w.WriteMessage(websocket.TextMessage, handshake); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}
	return SendSentinel(w)
}

// SendSentinel marks the end of client input.
func SendSentinel(w MessageWriter) error {
	if err := w.WriteMessage(websocket.TextMessage, []byte(protocol.Sentinel)); err != nil {
		return fmt.Errorf("send sentinel: %w", err)
	}
	return nil
}
