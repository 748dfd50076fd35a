package components

import (
	"context"
	"fmt"
	"io"

	"github.com/creastat/infra/telemetry"
	providers "github.com/creastat/providers/core"

	"github.com/creastat/assistant/core"
)

// SpeechOutputConfig holds speech output configuration
type SpeechOutputConfig struct {
	Provider providers.TTSProvider

	// Sink receives synthesized audio, such as a playback device.
	Sink io.Writer

	Voice    string
	Language string
	Speed    *float64

	// SpeakReplies also voices assistant text replies, not just
	// explicit speak requests.
	SpeakReplies bool

	Logger telemetry.Logger
}

// SpeechOutput synthesizes speech for speak events and writes the audio
// to a sink. Synthesis runs inside HandleEvent, so the subscriber queue
// naturally serializes utterances.
type SpeechOutput struct {
	config SpeechOutputConfig
	logger telemetry.Logger
}

// NewSpeechOutput creates a speech output component
func NewSpeechOutput(config SpeechOutputConfig) *SpeechOutput {
	return &SpeechOutput{
		config: config,
		logger: config.Logger.WithModule("speech_output"),
	}
}

// Name returns the component name
func (s *SpeechOutput) Name() string {
	return "speech_output"
}

// Role returns the component role
func (s *SpeechOutput) Role() core.Role {
	return core.RoleOutput
}

// Dependencies returns the components that must start first
func (s *SpeechOutput) Dependencies() []string {
	return nil
}

// Subscriptions returns the event types this component handles
func (s *SpeechOutput) Subscriptions() []core.EventType {
	types := []core.EventType{core.EventSpeak}
	if s.config.SpeakReplies {
		types = append(types, core.EventNLPResponse)
	}
	return types
}

// Initialize verifies the provider and sink are configured
func (s *SpeechOutput) Initialize(_ context.Context) error {
	if s.config.Provider == nil {
		return fmt.Errorf("speech_output: no text-to-speech provider configured")
	}
	if s.config.Sink == nil {
		return fmt.Errorf("speech_output: no audio sink configured")
	}

	s.logger.Info("speech output initialized",
		telemetry.String("provider", s.config.Provider.Name()),
		telemetry.String("voice", s.config.Voice))
	return nil
}

// HandleEvent synthesizes the utterance and streams audio to the sink
func (s *SpeechOutput) HandleEvent(ctx context.Context, ev core.Event) (*core.Event, error) {
	var text string
	switch p := ev.Payload.(type) {
	case core.SpeakPayload:
		text = p.Text
	case core.NLPResponsePayload:
		text = p.Text
	default:
		return nil, fmt.Errorf("speech_output: unexpected payload %T for event %s", ev.Payload, ev.Type)
	}
	if text == "" {
		return nil, nil
	}

	req := providers.TTSRequest{
		Voice:    s.config.Voice,
		Language: s.config.Language,
		Speed:    s.config.Speed,
	}
	if p, ok := ev.Payload.(core.SpeakPayload); ok {
		if p.Voice != "" {
			req.Voice = p.Voice
		}
		if p.Language != "" {
			req.Language = p.Language
		}
	}

	stream, err := s.config.Provider.StreamSynthesize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("speech_output: start synthesis stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Send(ctx, text); err != nil {
		return nil, fmt.Errorf("speech_output: send text: %w", err)
	}

	var bytesWritten int
	for {
		chunk, err := stream.Receive(ctx)
		if err != nil {
			return nil, fmt.Errorf("speech_output: receive audio chunk: %w", err)
		}
		if chunk == nil || chunk.Done {
			break
		}
		if len(chunk.Audio) == 0 {
			continue
		}
		n, err := s.config.Sink.Write(chunk.Audio)
		bytesWritten += n
		if err != nil {
			return nil, fmt.Errorf("speech_output: write audio: %w", err)
		}
	}

	s.logger.Debug("utterance synthesized",
		telemetry.String("event_id", ev.ID),
		telemetry.Int("audio_bytes", bytesWritten))
	return nil, nil
}

// HealthCheck delegates to the provider
func (s *SpeechOutput) HealthCheck(ctx context.Context) error {
	return s.config.Provider.HealthCheck(ctx)
}

// Shutdown releases nothing: provider and sink are owned by the caller
func (s *SpeechOutput) Shutdown(_ context.Context) error {
	return nil
}

// Compile-time interface checks.
var (
	_ core.Component     = (*SpeechOutput)(nil)
	_ core.HealthChecker = (*SpeechOutput)(nil)
)
