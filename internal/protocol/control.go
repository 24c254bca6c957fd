package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Sentinel is the text message that ends the client's input.
const Sentinel = "END"

// Status discriminates server control messages.
type Status string

const (
	StatusStartProcess Status = "start process"
	StatusProcessing   Status = "processing"
	StatusCompleted    Status = "completed"
	StatusError        Status = "error"
)

// Control is one parsed server control message. Only the fields relevant to
// Status are populated by the server.
type Control struct {
	Status      Status   `json:"status"`
	ProgressBar *float64 `json:"progressbar,omitempty"`
	ETA         string   `json:"eta,omitempty"`
	Left        string   `json:"left,omitempty"`
	FPS         float64  `json:"fps,omitempty"`
	PixFmt      string   `json:"pixfmt,omitempty"`
	ImgPath     string   `json:"img_path,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// IsProgress reports whether the message feeds the progress estimator.
func (c Control) IsProgress() bool {
	return c.Status == StatusStartProcess || c.Status == StatusProcessing
}

// ParseControl decodes and validates a textual control message.
func ParseControl(data []byte) (Control, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Control{}, &ProtocolError{Message: "control message is not a JSON object"}
	}

	var msg Control
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return Control{}, &ProtocolError{Message: "malformed control message", Err: err}
	}

	switch msg.Status {
	case StatusStartProcess, StatusProcessing, StatusCompleted, StatusError:
		return msg, nil
	case "":
		return Control{}, &ProtocolError{Message: "control message has no status"}
	default:
		return Control{}, &ProtocolError{Message: fmt.Sprintf("unknown control status %q", msg.Status)}
	}
}
