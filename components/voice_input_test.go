package components

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	providers "github.com/creastat/providers/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/assistant/core"
)

// TestStreamingSTTProvider provides streaming transcription for testing
type TestStreamingSTTProvider struct {
	stream *TestSTTStream
}

func (m *TestStreamingSTTProvider) Name() string                 { return "test-streaming-stt" }
func (m *TestStreamingSTTProvider) Type() providers.ProviderType { return "test" }
func (m *TestStreamingSTTProvider) Initialize(ctx context.Context, config providers.ProviderConfig) error {
	return nil
}
func (m *TestStreamingSTTProvider) Close() error                          { return nil }
func (m *TestStreamingSTTProvider) HealthCheck(ctx context.Context) error { return nil }
func (m *TestStreamingSTTProvider) Capabilities() []providers.Capability {
	return []providers.Capability{providers.CapabilitySTT}
}
func (m *TestStreamingSTTProvider) SupportsCapability(capability providers.Capability) bool {
	return capability == providers.CapabilitySTT
}
func (m *TestStreamingSTTProvider) Transcribe(ctx context.Context, req providers.STTRequest) (*providers.STTResponse, error) {
	return nil, nil
}
func (m *TestStreamingSTTProvider) StreamTranscribe(ctx context.Context, req providers.STTRequest) (providers.STTStream, error) {
	return m.stream, nil
}

// TestSTTStream yields interim chunks, one final chunk, then Done. It
// blocks transcript delivery until end of audio arrives so tests can
// verify the full frame pump ran.
type TestSTTStream struct {
	mu       sync.Mutex
	received [][]byte
	audioEnd chan struct{}
	endOnce  sync.Once
	chunks   int
	closed   bool
}

func newTestSTTStream() *TestSTTStream {
	return &TestSTTStream{audioEnd: make(chan struct{})}
}

func (s *TestSTTStream) Send(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(data) == 0 {
		s.endOnce.Do(func() { close(s.audioEnd) })
		return nil
	}
	s.received = append(s.received, data)
	return nil
}

func (s *TestSTTStream) Receive(ctx context.Context) (*providers.STTChunk, error) {
	select {
	case <-s.audioEnd:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks++
	switch s.chunks {
	case 1:
		return &providers.STTChunk{Text: "Hello", IsFinal: false, Confidence: 0.8}, nil
	case 2:
		return &providers.STTChunk{Text: "Hello world", IsFinal: true, Confidence: 0.95}, nil
	default:
		return &providers.STTChunk{Done: true}, nil
	}
}

func (s *TestSTTStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.endOnce.Do(func() { close(s.audioEnd) })
	return nil
}

func (s *TestSTTStream) frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.received))
	copy(out, s.received)
	return out
}

func TestVoiceInputPublishesFinalTranscripts(t *testing.T) {
	stream := newTestSTTStream()
	audio := bytes.Repeat([]byte{0x01}, 5000)
	v := NewVoiceInput(VoiceInputConfig{
		Provider: &TestStreamingSTTProvider{stream: stream},
		Source:   bytes.NewReader(audio),
		Language: "en",
		Logger:   testLogger(),
	})
	pub := &capturePublisher{}
	v.SetPublisher(pub)
	require.NoError(t, v.Initialize(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = v.Shutdown(ctx)
	})

	ok := pub.waitFor(2*time.Second, func(events []core.Event) bool {
		return len(events) >= 1
	})
	require.True(t, ok, "no transcript published")

	events := pub.all()
	require.Len(t, events, 1, "only final transcripts should be published")
	assert.Equal(t, core.EventVoiceInput, events[0].Type)
	payload := events[0].Payload.(core.VoiceInputPayload)
	assert.Equal(t, "Hello world", payload.Text)
	assert.InDelta(t, 0.95, payload.Confidence, 0.001)
	assert.Equal(t, "en", payload.Language)

	// 5000 bytes at the default 3200-byte frame size is two frames.
	frames := stream.frames()
	require.Len(t, frames, 2)
	assert.Len(t, frames[0], 3200)
	assert.Len(t, frames[1], 1800)
}

func TestVoiceInputShutdownClosesStream(t *testing.T) {
	stream := newTestSTTStream()
	v := NewVoiceInput(VoiceInputConfig{
		Provider: &TestStreamingSTTProvider{stream: stream},
		Source:   bytes.NewReader(nil),
		Logger:   testLogger(),
	})
	v.SetPublisher(&capturePublisher{})
	require.NoError(t, v.Initialize(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, v.Shutdown(ctx))
	assert.True(t, stream.closed)
}

func TestVoiceInputRequiresConfiguration(t *testing.T) {
	noProvider := NewVoiceInput(VoiceInputConfig{Source: bytes.NewReader(nil), Logger: testLogger()})
	noProvider.SetPublisher(&capturePublisher{})
	assert.Error(t, noProvider.Initialize(context.Background()))

	noSource := NewVoiceInput(VoiceInputConfig{
		Provider: &TestStreamingSTTProvider{stream: newTestSTTStream()},
		Logger:   testLogger(),
	})
	noSource.SetPublisher(&capturePublisher{})
	assert.Error(t, noSource.Initialize(context.Background()))

	noPublisher := NewVoiceInput(VoiceInputConfig{
		Provider: &TestStreamingSTTProvider{stream: newTestSTTStream()},
		Source:   bytes.NewReader(nil),
		Logger:   testLogger(),
	})
	assert.Error(t, noPublisher.Initialize(context.Background()))
}
