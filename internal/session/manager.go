// Package session owns the single live transcription: the microphone, the
// cloud stream and the transcript they produce.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nikhilbhutani/design2code/internal/audio"
	"github.com/nikhilbhutani/design2code/internal/broadcast"
	"github.com/nikhilbhutani/design2code/internal/transcribe"
)

var (
	ErrAlreadyActive = errors.New("transcription already in progress")
	ErrNotActive     = errors.New("no active transcription session")
	ErrClosed        = errors.New("session manager is shut down")
)

type State int

const (
	StateIdle State = iota
	StateStarting
	StateActive
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Broadcaster receives every transcript fragment as it arrives.
type Broadcaster interface {
	Broadcast(msg broadcast.Message)
}

// Status is a snapshot of the session.
type Status struct {
	State         State
	Active        bool
	Transcription string
	// Err is the failure that ended the last session, if any.
	Err error
}

// Manager allows at most one live session. The microphone and the cloud
// stream are opened and released together.
type Manager struct {
	source      audio.Source
	streamer    transcribe.Streamer
	broadcaster Broadcaster
	logger      *slog.Logger

	// starts counts Start calls between Starting and their outcome.
	starts sync.WaitGroup

	mu       sync.Mutex
	state    State
	closed   bool
	lastText string
	lastErr  error
	live     *liveSession
}

type liveSession struct {
	cancel context.CancelFunc
	mic    audio.Stream
	stream transcribe.Stream
	done   chan struct{}

	// text is guarded by Manager.mu and only grows while the session is
	// Manager.live.
	text strings.Builder

	releaseOnce sync.Once
	releaseErr  error
}

// release closes the microphone first so no more audio is produced, then the
// provider stream.
func (l *liveSession) release() error {
	l.releaseOnce.Do(func() {
		l.cancel()
		l.releaseErr = errors.Join(l.mic.Close(), l.stream.Close())
	})
	return l.releaseErr
}

func NewManager(source audio.Source, streamer transcribe.Streamer, b Broadcaster, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		source:      source,
		streamer:    streamer,
		broadcaster: b,
		logger:      logger.With("component", "session"),
	}
}

// Start opens the microphone and the cloud stream and begins consuming
// transcript events. The session outlives ctx; only Stop or a stream failure
// ends it.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state != StateIdle {
		m.mu.Unlock()
		return ErrAlreadyActive
	}
	m.state = StateStarting
	m.starts.Add(1)
	m.mu.Unlock()
	defer m.starts.Done()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	mic, err := m.source.Open(runCtx)
	if err != nil {
		cancel()
		m.setIdle()
		return fmt.Errorf("open microphone: %w", err)
	}

	stream, err := m.streamer.Begin(runCtx, mic.Chunks())
	if err != nil {
		cancel()
		if cerr := mic.Close(); cerr != nil {
			m.logger.Warn("close microphone after failed start", "error", cerr)
		}
		m.setIdle()
		return fmt.Errorf("begin transcription: %w", err)
	}

	live := &liveSession{
		cancel: cancel,
		mic:    mic,
		stream: stream,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.state = StateIdle
		m.mu.Unlock()
		if err := live.release(); err != nil {
			m.logger.Warn("release transcription resources", "error", err)
		}
		return ErrClosed
	}
	m.state = StateActive
	m.lastText = ""
	m.lastErr = nil
	m.live = live
	m.mu.Unlock()

	go m.consume(live)

	m.logger.Info("transcription started")
	return nil
}

// Stop ends the active session and returns the accumulated transcript. Only
// the first of concurrent calls takes effect; the others get ErrNotActive.
func (m *Manager) Stop(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return "", ErrNotActive
	}
	live := m.live
	m.state = StateStopping
	m.mu.Unlock()

	if err := live.release(); err != nil {
		m.logger.Warn("release transcription resources", "error", err)
	}

	select {
	case <-live.done:
	case <-ctx.Done():
		// Detaching below drops whatever the consumer has not appended yet.
		m.logger.Warn("stop returned before consumer drained", "error", ctx.Err())
	}

	m.mu.Lock()
	text := live.text.String()
	m.state = StateIdle
	m.live = nil
	m.lastText = text
	m.mu.Unlock()

	m.logger.Info("transcription stopped", "chars", len(text))
	return text, nil
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:         m.state,
		Active:        m.state == StateActive,
		Transcription: m.transcriptLocked(),
		Err:           m.lastErr,
	}
}

// LastTranscript returns the accumulated text of the current or most recent
// session.
func (m *Manager) LastTranscript() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transcriptLocked()
}

func (m *Manager) transcriptLocked() string {
	if m.live != nil {
		return m.live.text.String()
	}
	return m.lastText
}

// Shutdown refuses new sessions, waits for a Start in progress to settle and
// stops the active session, if any.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	settled := make(chan struct{})
	go func() {
		m.starts.Wait()
		close(settled)
	}()
	select {
	case <-settled:
	case <-ctx.Done():
		return fmt.Errorf("wait for pending start: %w", ctx.Err())
	}

	if _, err := m.Stop(ctx); err != nil && !errors.Is(err, ErrNotActive) {
		return err
	}
	return nil
}

func (m *Manager) setIdle() {
	m.mu.Lock()
	m.state = StateIdle
	m.mu.Unlock()
}

// consume runs for the lifetime of one session. Events are appended and
// broadcast in the order the provider emitted them. Events arriving after
// the session was detached by Stop are dropped.
func (m *Manager) consume(live *liveSession) {
	defer close(live.done)

	for ev := range live.stream.Events() {
		m.mu.Lock()
		current := m.live == live
		if current && ev.IsFinal {
			appendFragment(&live.text, ev.Text)
		}
		m.mu.Unlock()
		if !current {
			continue
		}
		m.broadcaster.Broadcast(broadcast.Update(ev.Text, ev.IsFinal))
	}

	m.mu.Lock()
	if m.live != live || m.state != StateActive {
		// Stop owns the teardown.
		m.mu.Unlock()
		return
	}
	m.state = StateStopping
	m.mu.Unlock()

	err := errors.Join(live.stream.Err(), live.mic.Err())
	if rerr := live.release(); rerr != nil {
		m.logger.Warn("release transcription resources", "error", rerr)
	}

	m.mu.Lock()
	m.state = StateIdle
	m.lastText = live.text.String()
	m.live = nil
	m.lastErr = err
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("transcription ended with error", "error", err)
		m.broadcaster.Broadcast(broadcast.Failure(err))
		return
	}
	m.logger.Info("transcription stream ended")
}

// appendFragment adds a final fragment followed by a single space.
func appendFragment(b *strings.Builder, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.WriteString(text)
	b.WriteByte(' ')
}
