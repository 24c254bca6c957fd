package protocol

import "fmt"

// TransportError is a socket-level failure or an unexpected close.
type TransportError struct {
	Op  string
	Err error
}

// Error formats transport failures for logs and sinks.
func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("transport: %s", e.Op)
	}
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ProtocolError is a server-reported error or a control message that failed validation.
type ProtocolError struct {
	Message string
	Err     error
}

// Error returns the server message verbatim when there is no underlying cause.
func (e *ProtocolError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *ProtocolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DecodeError reports one frame that could not be turned into any displayable
// resource. It never fails the job.
type DecodeError struct {
	Position int
	Err      error
}

// Error formats per-frame decode failures.
func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("decode frame %d: %v", e.Position, e.Err)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
