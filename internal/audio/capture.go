// Package audio captures raw PCM from a local input device.
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"time"
)

// ErrDeviceUnavailable is returned when the capture device is missing or busy.
// Callers must not retry automatically.
var ErrDeviceUnavailable = errors.New("audio capture device unavailable")

// Config describes the PCM format produced by a capture stream.
type Config struct {
	SampleRate    int
	Channels      int
	BitDepth      int
	ChunkDuration time.Duration
	DeviceIndex   int // -1 selects the default input device
}

// FramesPerBuffer is the number of sample frames in one chunk.
func (c Config) FramesPerBuffer() int {
	return int(int64(c.SampleRate) * c.ChunkDuration.Milliseconds() / 1000)
}

// ChunkBytes is the size in bytes of one chunk of ChunkDuration.
func (c Config) ChunkBytes() int {
	return c.FramesPerBuffer() * c.Channels * c.BitDepth / 8
}

// Source opens capture streams. Every Open yields a fresh stream; a closed
// stream cannot be restarted.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an unbounded sequence of PCM chunks that ends only when it is
// closed or the device fails.
type Stream interface {
	// Chunks is closed when the stream ends.
	Chunks() <-chan []byte
	// Err reports why the stream ended, nil after a clean Close.
	Err() error
	// Close releases the device. Safe to call more than once.
	Close() error
}

// int16ToBytes encodes samples as little-endian 16-bit PCM into a new slice.
func int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
