package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Microphone captures mono 16-bit PCM from a PortAudio input device.
type Microphone struct {
	cfg    Config
	logger *slog.Logger
}

func NewMicrophone(cfg Config, logger *slog.Logger) *Microphone {
	if logger == nil {
		logger = slog.Default()
	}
	return &Microphone{cfg: cfg, logger: logger.With("component", "microphone")}
}

// Open initializes PortAudio and starts capturing. Every failure before the
// first sample is reported as ErrDeviceUnavailable.
func (m *Microphone) Open(ctx context.Context) (Stream, error) {
	if m.cfg.BitDepth != 16 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrDeviceUnavailable, m.cfg.BitDepth)
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize portaudio: %w", ErrDeviceUnavailable, err)
	}

	device, err := m.device()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = m.cfg.Channels
	params.SampleRate = float64(m.cfg.SampleRate)
	params.FramesPerBuffer = m.cfg.FramesPerBuffer()

	buf := make([]int16, m.cfg.FramesPerBuffer()*m.cfg.Channels)
	ps, err := portaudio.OpenStream(params, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: open stream on %q: %w", ErrDeviceUnavailable, device.Name, err)
	}
	if err := ps.Start(); err != nil {
		ps.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: start stream on %q: %w", ErrDeviceUnavailable, device.Name, err)
	}

	s := &micStream{
		ps:     ps,
		buf:    buf,
		chunks: make(chan []byte, 32),
		done:   make(chan struct{}),
		logger: m.logger,
	}
	s.wg.Add(1)
	go s.pump(ctx)

	m.logger.Info("microphone started",
		"device", device.Name,
		"sample_rate", m.cfg.SampleRate,
		"channels", m.cfg.Channels,
	)
	return s, nil
}

func (m *Microphone) device() (*portaudio.DeviceInfo, error) {
	if m.cfg.DeviceIndex < 0 {
		d, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return d, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if m.cfg.DeviceIndex >= len(devices) {
		return nil, fmt.Errorf("device index %d out of range (%d devices)", m.cfg.DeviceIndex, len(devices))
	}
	d := devices[m.cfg.DeviceIndex]
	if d.MaxInputChannels < m.cfg.Channels {
		return nil, fmt.Errorf("device %q has no input channels", d.Name)
	}
	return d, nil
}

type micStream struct {
	ps     *portaudio.Stream
	buf    []int16
	chunks chan []byte
	done   chan struct{}
	logger *slog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error

	mu  sync.Mutex
	err error
}

func (s *micStream) Chunks() <-chan []byte { return s.chunks }

func (s *micStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// pump reads one buffer at a time, so Close waits at most one chunk duration
// for it to notice done.
func (s *micStream) pump(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.chunks)

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := s.ps.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				s.logger.Debug("input overflowed, dropping buffer")
				continue
			}
			s.mu.Lock()
			s.err = fmt.Errorf("read microphone: %w", err)
			s.mu.Unlock()
			s.logger.Error("microphone read failed", "error", err)
			return
		}

		chunk := int16ToBytes(s.buf)
		select {
		case s.chunks <- chunk:
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *micStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.closeErr = errors.Join(s.ps.Stop(), s.ps.Close(), portaudio.Terminate())
		s.logger.Info("microphone stopped")
	})
	return s.closeErr
}
