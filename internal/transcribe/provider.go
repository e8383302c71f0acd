// Package transcribe streams live audio to a cloud speech-to-text service.
package transcribe

import (
	"context"
	"errors"
)

// ErrStream classifies any failure of the provider connection: rejected
// start, dropped connection or a send that could not be delivered.
var ErrStream = errors.New("transcription stream error")

// Event is one incremental transcript fragment in provider emission order.
type Event struct {
	Text    string
	IsFinal bool
}

// Streamer opens one streaming transcription per call.
type Streamer interface {
	// Begin starts forwarding chunks to the provider. Forwarding ends when
	// chunks is closed (end of audio), ctx is done or the stream is closed.
	Begin(ctx context.Context, chunks <-chan []byte) (Stream, error)
}

// Stream delivers the provider's events.
type Stream interface {
	// Events is closed when the provider stream terminates.
	Events() <-chan Event
	// Err is valid after Events is closed; non-nil errors match ErrStream.
	Err() error
	// Close cancels audio forwarding and closes the provider connection.
	// Safe to call more than once.
	Close() error
}
