package components

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/creastat/infra/telemetry"
	providers "github.com/creastat/providers/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/assistant/core"
)

// TestStreamingLLMProvider provides streaming responses for testing
type TestStreamingLLMProvider struct {
	responseText string
	streamErr    error
}

func (m *TestStreamingLLMProvider) Name() string                 { return "test-streaming-llm" }
func (m *TestStreamingLLMProvider) Type() providers.ProviderType { return "test" }
func (m *TestStreamingLLMProvider) Initialize(ctx context.Context, config providers.ProviderConfig) error {
	return nil
}
func (m *TestStreamingLLMProvider) Close() error                          { return nil }
func (m *TestStreamingLLMProvider) HealthCheck(ctx context.Context) error { return nil }
func (m *TestStreamingLLMProvider) Capabilities() []providers.Capability {
	return []providers.Capability{providers.CapabilityLLM}
}
func (m *TestStreamingLLMProvider) SupportsCapability(capability providers.Capability) bool {
	return capability == providers.CapabilityLLM
}
func (m *TestStreamingLLMProvider) ChatCompletion(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	return nil, nil
}
func (m *TestStreamingLLMProvider) StreamChatCompletion(ctx context.Context, req providers.ChatRequest) (providers.ChatStream, error) {
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	return &TestChatStream{responseText: m.responseText}, nil
}

// TestChatStream yields the response in two chunks then Done
type TestChatStream struct {
	responseText string
	step         int
}

func (s *TestChatStream) Send(ctx context.Context, data []byte) error {
	return nil
}

func (s *TestChatStream) Receive(ctx context.Context) (*providers.ChatChunk, error) {
	s.step++
	half := len(s.responseText) / 2
	switch s.step {
	case 1:
		return &providers.ChatChunk{Content: s.responseText[:half]}, nil
	case 2:
		return &providers.ChatChunk{Content: s.responseText[half:]}, nil
	default:
		return &providers.ChatChunk{Done: true}, nil
	}
}

func (s *TestChatStream) Close() error {
	return nil
}

func testLogger() telemetry.Logger {
	return telemetry.New(telemetry.Config{Level: "error"})
}

func newTestNLP(t *testing.T, provider providers.LLMProvider) (*NLP, *capturePublisher) {
	t.Helper()
	nlp := NewNLP(NLPConfig{
		Provider: provider,
		Model:    "gpt-4",
		Logger:   testLogger(),
	})
	pub := &capturePublisher{}
	nlp.SetPublisher(pub)
	require.NoError(t, nlp.Initialize(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = nlp.Shutdown(ctx)
	})
	return nlp, pub
}

func TestNLPPublishesCorrelatedReply(t *testing.T) {
	nlp, pub := newTestNLP(t, &TestStreamingLLMProvider{responseText: "Hello back."})

	input := core.NewEvent(core.EventTextInput, "text_input", core.TextInputPayload{Text: "Hello"})
	resp, err := nlp.HandleEvent(context.Background(), input)
	require.NoError(t, err)
	assert.Nil(t, resp, "reply should come from the worker, not the handler")

	ok := pub.waitFor(2*time.Second, func(events []core.Event) bool {
		_, found := pub.firstOfType(core.EventNLPResponse)
		return found
	})
	require.True(t, ok, "no reply published")

	reply, _ := pub.firstOfType(core.EventNLPResponse)
	assert.Equal(t, input.CorrelationID, reply.CorrelationID)
	assert.Equal(t, "nlp", reply.Source)
	payload := reply.Payload.(core.NLPResponsePayload)
	assert.Equal(t, "Hello back.", payload.Text)
	assert.Equal(t, "gpt-4", payload.Model)
}

func TestNLPPublishesMemoryUpdate(t *testing.T) {
	nlp, pub := newTestNLP(t, &TestStreamingLLMProvider{responseText: "Noted."})

	input := core.NewEvent(core.EventVoiceInput, "voice_input", core.VoiceInputPayload{Text: "Remember this"})
	_, err := nlp.HandleEvent(context.Background(), input)
	require.NoError(t, err)

	ok := pub.waitFor(2*time.Second, func(events []core.Event) bool {
		_, found := pub.firstOfType(core.EventMemoryUpdate)
		return found
	})
	require.True(t, ok, "no memory update published")

	memory, _ := pub.firstOfType(core.EventMemoryUpdate)
	payload := memory.Payload.(core.MemoryUpdatePayload)
	assert.Equal(t, "assistant", payload.Role)
	assert.Equal(t, "Noted.", payload.Content)
}

func TestNLPIgnoresEmptyInput(t *testing.T) {
	nlp, pub := newTestNLP(t, &TestStreamingLLMProvider{responseText: "unused"})

	input := core.NewEvent(core.EventTextInput, "text_input", core.TextInputPayload{Text: "   "})
	resp, err := nlp.HandleEvent(context.Background(), input)
	require.NoError(t, err)
	assert.Nil(t, resp)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, pub.all())
}

func TestNLPPublishesErrorOnStreamFailure(t *testing.T) {
	nlp, pub := newTestNLP(t, &TestStreamingLLMProvider{streamErr: errors.New("provider unavailable")})

	input := core.NewEvent(core.EventTextInput, "text_input", core.TextInputPayload{Text: "Hi"})
	_, err := nlp.HandleEvent(context.Background(), input)
	require.NoError(t, err)

	ok := pub.waitFor(2*time.Second, func(events []core.Event) bool {
		_, found := pub.firstOfType(core.EventError)
		return found
	})
	require.True(t, ok, "no error event published")

	errEv, _ := pub.firstOfType(core.EventError)
	payload := errEv.Payload.(core.ErrorPayload)
	assert.Equal(t, "nlp", payload.Component)
	assert.True(t, payload.Retryable)
	assert.Contains(t, payload.Message, "provider unavailable")
}

func TestNLPRejectsUnexpectedPayload(t *testing.T) {
	nlp, _ := newTestNLP(t, &TestStreamingLLMProvider{responseText: "unused"})

	input := core.NewEvent(core.EventTextInput, "text_input", core.SpeakPayload{Text: "wrong"})
	_, err := nlp.HandleEvent(context.Background(), input)
	assert.Error(t, err)
}
