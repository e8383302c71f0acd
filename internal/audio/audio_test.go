package audio

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestConfigSizes(t *testing.T) {
	cfg := Config{SampleRate: 16000, Channels: 1, BitDepth: 16, ChunkDuration: 100 * time.Millisecond}

	if got := cfg.FramesPerBuffer(); got != 1600 {
		t.Errorf("FramesPerBuffer() = %d, want 1600", got)
	}
	if got := cfg.ChunkBytes(); got != 3200 {
		t.Errorf("ChunkBytes() = %d, want 3200", got)
	}

	cfg.SampleRate = 32000
	if got := cfg.ChunkBytes(); got != 6400 {
		t.Errorf("ChunkBytes() at 32kHz = %d, want 6400", got)
	}
}

func TestInt16ToBytes(t *testing.T) {
	got := int16ToBytes([]int16{1, -1, 0x1234})
	want := []byte{0x01, 0x00, 0xff, 0xff, 0x34, 0x12}
	if !bytes.Equal(got, want) {
		t.Fatalf("int16ToBytes = %x, want %x", got, want)
	}
}

func collect(t *testing.T, ch <-chan []byte) [][]byte {
	t.Helper()
	var out [][]byte
	timeout := time.After(2 * time.Second)
	for {
		select {
		case b, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, b)
		case <-timeout:
			t.Fatal("timed out waiting for rechunked output")
		}
	}
}

func TestRechunkCoalescesAndFlushes(t *testing.T) {
	in := make(chan []byte, 8)
	out := Rechunk(context.Background(), in, 4)

	in <- []byte{1, 2}
	in <- []byte{3}
	in <- []byte{4, 5}
	in <- []byte{6, 7, 8, 9}
	in <- []byte{10}
	close(in)

	got := collect(t, out)
	want := [][]byte{{1, 2, 3, 4, 5}, {6, 7, 8, 9}, {10}}
	if len(got) != len(want) {
		t.Fatalf("got %d chunks %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Errorf("chunk %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRechunkPreservesBytes(t *testing.T) {
	in := make(chan []byte)
	out := Rechunk(context.Background(), in, 3200)

	var sent []byte
	go func() {
		defer close(in)
		for i := 0; i < 50; i++ {
			chunk := bytes.Repeat([]byte{byte(i)}, 97+i)
			sent = append(sent, chunk...)
			in <- chunk
		}
	}()

	var received []byte
	for _, c := range collect(t, out) {
		received = append(received, c...)
	}
	if !bytes.Equal(received, sent) {
		t.Fatalf("received %d bytes, sent %d; content differs", len(received), len(sent))
	}
}

func TestRechunkStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan []byte)
	out := Rechunk(ctx, in, 10)

	cancel()

	select {
	case _, ok := <-out:
		if ok {
			t.Fatal("expected closed channel after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("rechunk did not stop after cancel")
	}
}
