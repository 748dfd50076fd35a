package components

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/creastat/infra/telemetry"
	providers "github.com/creastat/providers/core"

	"github.com/creastat/assistant/core"
)

// VoiceInputConfig holds voice input configuration
type VoiceInputConfig struct {
	Provider providers.STTProvider

	// Source supplies raw audio frames, such as a microphone capture.
	Source io.Reader

	Language   string
	Encoding   string
	SampleRate int

	// FrameSize is the audio read size in bytes (default 3200, which
	// is 100ms of 16kHz 16-bit mono PCM).
	FrameSize int

	Logger telemetry.Logger
}

// VoiceInput streams audio from a source through a speech-to-text
// provider and publishes each final transcript as a voice input event.
type VoiceInput struct {
	config VoiceInputConfig
	logger telemetry.Logger
	pub    core.Publisher

	stream providers.STTStream
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewVoiceInput creates a voice input component
func NewVoiceInput(config VoiceInputConfig) *VoiceInput {
	if config.FrameSize <= 0 {
		config.FrameSize = 3200
	}
	return &VoiceInput{
		config: config,
		logger: config.Logger.WithModule("voice_input"),
	}
}

// Name returns the component name
func (v *VoiceInput) Name() string {
	return "voice_input"
}

// Role returns the component role
func (v *VoiceInput) Role() core.Role {
	return core.RoleInput
}

// Dependencies returns the components that must start first
func (v *VoiceInput) Dependencies() []string {
	return nil
}

// Subscriptions returns the event types this component handles
func (v *VoiceInput) Subscriptions() []core.EventType {
	return nil
}

// SetPublisher stores the bus handle
func (v *VoiceInput) SetPublisher(pub core.Publisher) {
	v.pub = pub
}

// Initialize opens the transcription stream and starts the audio and
// transcript pumps.
func (v *VoiceInput) Initialize(ctx context.Context) error {
	if v.config.Provider == nil {
		return fmt.Errorf("voice_input: no speech-to-text provider configured")
	}
	if v.config.Source == nil {
		return fmt.Errorf("voice_input: no audio source configured")
	}
	if v.pub == nil {
		return fmt.Errorf("voice_input: no publisher configured")
	}

	req := providers.STTRequest{
		Language:   v.config.Language,
		Encoding:   v.config.Encoding,
		SampleRate: v.config.SampleRate,
	}

	stream, err := v.config.Provider.StreamTranscribe(ctx, req)
	if err != nil {
		return fmt.Errorf("voice_input: start transcription stream: %w", err)
	}
	v.stream = stream

	pumpCtx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel

	v.wg.Add(2)
	go v.sendAudio(pumpCtx)
	go v.receiveTranscripts(pumpCtx)

	v.logger.Info("voice input initialized",
		telemetry.String("provider", v.config.Provider.Name()),
		telemetry.String("language", v.config.Language),
		telemetry.Int("sample_rate", v.config.SampleRate))
	return nil
}

// sendAudio reads frames from the source into the stream. An empty send
// marks end of audio.
func (v *VoiceInput) sendAudio(ctx context.Context) {
	defer v.wg.Done()

	buf := make([]byte, v.config.FrameSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := v.config.Source.Read(buf)
		if n > 0 {
			frame := make([]byte, n)
			copy(frame, buf[:n])
			if sendErr := v.stream.Send(ctx, frame); sendErr != nil {
				v.logger.Error("audio send failed", telemetry.Err(sendErr))
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				v.logger.Error("audio source failed", telemetry.Err(err))
			}
			if sendErr := v.stream.Send(ctx, []byte{}); sendErr != nil {
				v.logger.Debug("end-of-audio send skipped", telemetry.Err(sendErr))
			}
			return
		}
	}
}

// receiveTranscripts publishes each final transcript chunk.
func (v *VoiceInput) receiveTranscripts(ctx context.Context) {
	defer v.wg.Done()

	for {
		chunk, err := v.stream.Receive(ctx)
		if err != nil {
			if ctx.Err() == nil {
				v.logger.Error("transcript receive failed", telemetry.Err(err))
			}
			return
		}
		if chunk == nil || chunk.Done {
			v.logger.Info("transcription stream finished")
			return
		}
		if !chunk.IsFinal || chunk.Text == "" {
			continue
		}

		ev := core.NewEvent(core.EventVoiceInput, v.Name(), core.VoiceInputPayload{
			Text:       chunk.Text,
			Confidence: chunk.Confidence,
			Language:   v.config.Language,
		})
		if _, err := v.pub.Publish(ev); err != nil {
			v.logger.Error("transcript publish failed", telemetry.Err(err))
			return
		}
		v.logger.Debug("transcript published",
			telemetry.String("text", chunk.Text),
			telemetry.Float64("confidence", chunk.Confidence))
	}
}

// HandleEvent is never called: the component has no subscriptions
func (v *VoiceInput) HandleEvent(_ context.Context, ev core.Event) (*core.Event, error) {
	return nil, fmt.Errorf("voice_input: unexpected event %s", ev.Type)
}

// HealthCheck delegates to the provider
func (v *VoiceInput) HealthCheck(ctx context.Context) error {
	return v.config.Provider.HealthCheck(ctx)
}

// Shutdown closes the transcription stream and waits for the pumps.
func (v *VoiceInput) Shutdown(ctx context.Context) error {
	if v.cancel != nil {
		v.cancel()
	}
	if v.stream != nil {
		if err := v.stream.Close(); err != nil {
			v.logger.Warn("stream close failed", telemetry.Err(err))
		}
	}

	done := make(chan struct{})
	go func() {
		v.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		v.logger.Info("voice input stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Compile-time interface checks.
var (
	_ core.Component      = (*VoiceInput)(nil)
	_ core.PublisherAware = (*VoiceInput)(nil)
	_ core.HealthChecker  = (*VoiceInput)(nil)
)
