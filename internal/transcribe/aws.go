package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"

	"github.com/nikhilbhutani/design2code/internal/audio"
)

// AWSConfig configures an AWS Transcribe streaming session.
type AWSConfig struct {
	Region          string
	AccessKeyID     string // optional, falls back to the default credential chain
	SecretAccessKey string
	LanguageCode    string
	SampleRate      int
	// MinChunkBytes is the smallest audio event sent to the provider.
	MinChunkBytes int
}

// AWS streams PCM audio to Amazon Transcribe.
type AWS struct {
	client *transcribestreaming.Client
	cfg    AWSConfig
	logger *slog.Logger
}

func NewAWS(ctx context.Context, cfg AWSConfig, logger *slog.Logger) (*AWS, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &AWS{
		client: transcribestreaming.NewFromConfig(awsCfg),
		cfg:    cfg,
		logger: logger.With("component", "transcribe", "provider", "aws"),
	}, nil
}

func (a *AWS) Begin(ctx context.Context, chunks <-chan []byte) (Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	out, err := a.client.StartStreamTranscription(ctx, &transcribestreaming.StartStreamTranscriptionInput{
		LanguageCode:         types.LanguageCode(a.cfg.LanguageCode),
		MediaEncoding:        types.MediaEncodingPcm,
		MediaSampleRateHertz: aws.Int32(int32(a.cfg.SampleRate)),
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: start stream transcription: %w", ErrStream, err)
	}

	a.logger.Info("transcription stream started", "language", a.cfg.LanguageCode, "sample_rate", a.cfg.SampleRate)
	return startStream(ctx, cancel, out.GetStream(), audio.Rechunk(ctx, chunks, a.cfg.MinChunkBytes), a.logger), nil
}

// eventStream is the subset of the SDK's bidirectional stream used here.
type eventStream interface {
	Send(ctx context.Context, event types.AudioStream) error
	Events() <-chan types.TranscriptResultStream
	Close() error
	Err() error
}

type awsStream struct {
	es     eventStream
	cancel context.CancelFunc
	events chan Event
	logger *slog.Logger

	wg          sync.WaitGroup
	esCloseOnce sync.Once
	esCloseErr  error
	closeOnce   sync.Once

	mu  sync.Mutex
	err error
}

func startStream(ctx context.Context, cancel context.CancelFunc, es eventStream, chunks <-chan []byte, logger *slog.Logger) *awsStream {
	s := &awsStream{
		es:     es,
		cancel: cancel,
		events: make(chan Event, 64),
		logger: logger,
	}
	s.wg.Add(2)
	go s.forward(ctx, chunks)
	go s.receive(ctx)
	return s
}

func (s *awsStream) Events() <-chan Event { return s.events }

func (s *awsStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *awsStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeProvider()
		s.wg.Wait()
	})
	return s.esCloseErr
}

func (s *awsStream) closeProvider() {
	s.esCloseOnce.Do(func() {
		s.esCloseErr = s.es.Close()
	})
}

// fail records the first provider error. Errors after cancellation are the
// result of Close and are not failures.
func (s *awsStream) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	if s.err == nil {
		s.err = fmt.Errorf("%w: %w", ErrStream, err)
	}
	s.mu.Unlock()
}

func (s *awsStream) forward(ctx context.Context, chunks <-chan []byte) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				// An empty audio event marks the end of audio.
				if err := s.send(ctx, nil); err != nil {
					s.fail(ctx, fmt.Errorf("send end of audio: %w", err))
					s.closeProvider()
				}
				return
			}
			if err := s.send(ctx, chunk); err != nil {
				s.logger.Error("audio send failed", "error", err)
				s.fail(ctx, fmt.Errorf("send audio: %w", err))
				s.closeProvider()
				return
			}
		}
	}
}

func (s *awsStream) send(ctx context.Context, chunk []byte) error {
	if chunk == nil {
		chunk = []byte{}
	}
	return s.es.Send(ctx, &types.AudioStreamMemberAudioEvent{
		Value: types.AudioEvent{AudioChunk: chunk},
	})
}

func (s *awsStream) receive(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.events)

	for ev := range s.es.Events() {
		te, ok := ev.(*types.TranscriptResultStreamMemberTranscriptEvent)
		if !ok {
			continue
		}
		for _, e := range fragments(te.Value) {
			select {
			case s.events <- e:
			case <-ctx.Done():
				return
			}
		}
	}

	if err := s.es.Err(); err != nil {
		s.logger.Error("transcription stream failed", "error", err)
		s.fail(ctx, err)
	}
}

// fragments extracts the first alternative of every result, skipping empty
// transcripts.
func fragments(te types.TranscriptEvent) []Event {
	if te.Transcript == nil {
		return nil
	}
	var out []Event
	for _, r := range te.Transcript.Results {
		if len(r.Alternatives) == 0 || r.Alternatives[0].Transcript == nil {
			continue
		}
		text := *r.Alternatives[0].Transcript
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, Event{Text: text, IsFinal: !r.IsPartial})
	}
	return out
}
