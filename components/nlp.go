// Package components provides the built-in input, processor, output,
// and action components of the assistant runtime.
package components

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/creastat/infra/telemetry"
	providers "github.com/creastat/providers/core"

	"github.com/creastat/assistant/core"
)

// DefaultNLPWorkers bounds concurrent language model requests.
const DefaultNLPWorkers = 4

// NLPConfig holds NLP processor configuration
type NLPConfig struct {
	Provider     providers.LLMProvider
	Model        string
	Temperature  *float64
	MaxTokens    *int
	SystemPrompt string

	// MaxHistory bounds the retained conversation turns (default 20).
	MaxHistory int

	// Workers bounds concurrent model requests (default 4).
	Workers int

	Logger telemetry.Logger
}

// NLP turns user input events into assistant replies through a language
// model. Model calls run on worker goroutines so HandleEvent returns
// immediately and never stalls the subscriber queue.
type NLP struct {
	config NLPConfig
	logger telemetry.Logger
	pub    core.Publisher

	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	history []providers.Message
}

// NewNLP creates an NLP processor
func NewNLP(config NLPConfig) *NLP {
	if config.MaxHistory <= 0 {
		config.MaxHistory = 20
	}
	if config.Workers <= 0 {
		config.Workers = DefaultNLPWorkers
	}
	return &NLP{
		config: config,
		logger: config.Logger.WithModule("nlp"),
		sem:    make(chan struct{}, config.Workers),
	}
}

// Name returns the component name
func (n *NLP) Name() string {
	return "nlp"
}

// Role returns the component role
func (n *NLP) Role() core.Role {
	return core.RoleProcessor
}

// Dependencies returns the components that must start first
func (n *NLP) Dependencies() []string {
	return nil
}

// Subscriptions returns the event types this component handles
func (n *NLP) Subscriptions() []core.EventType {
	return []core.EventType{core.EventTextInput, core.EventVoiceInput}
}

// SetPublisher stores the bus handle for emitting replies
func (n *NLP) SetPublisher(pub core.Publisher) {
	n.pub = pub
}

// Initialize verifies the provider is usable
func (n *NLP) Initialize(ctx context.Context) error {
	if n.config.Provider == nil {
		return fmt.Errorf("nlp: no language model provider configured")
	}
	if n.pub == nil {
		return fmt.Errorf("nlp: no publisher configured")
	}
	if !n.config.Provider.SupportsCapability(providers.CapabilityLLM) {
		return fmt.Errorf("nlp: provider %q does not support chat completion", n.config.Provider.Name())
	}

	n.ctx, n.cancel = context.WithCancel(context.Background())
	n.logger.Info("NLP processor initialized",
		telemetry.String("provider", n.config.Provider.Name()),
		telemetry.String("model", n.config.Model))
	return nil
}

// HandleEvent extracts the utterance and hands it to a worker. It
// returns nil immediately; the reply is published from the worker.
func (n *NLP) HandleEvent(_ context.Context, ev core.Event) (*core.Event, error) {
	text, err := inputText(ev)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		n.logger.Debug("ignoring empty input", telemetry.String("event_id", ev.ID))
		return nil, nil
	}

	select {
	case n.sem <- struct{}{}:
	case <-n.ctx.Done():
		return nil, n.ctx.Err()
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() { <-n.sem }()
		n.respond(ev, text)
	}()
	return nil, nil
}

func inputText(ev core.Event) (string, error) {
	switch p := ev.Payload.(type) {
	case core.TextInputPayload:
		return p.Text, nil
	case core.VoiceInputPayload:
		return p.Text, nil
	default:
		return "", fmt.Errorf("nlp: unexpected payload %T for event %s", ev.Payload, ev.Type)
	}
}

// respond streams a completion and publishes the assembled reply.
func (n *NLP) respond(cause core.Event, text string) {
	req := providers.ChatRequest{
		Model:       n.config.Model,
		Messages:    n.buildMessages(text),
		Temperature: n.config.Temperature,
		MaxTokens:   n.config.MaxTokens,
	}

	stream, err := n.config.Provider.StreamChatCompletion(n.ctx, req)
	if err != nil {
		n.publishError(cause, fmt.Errorf("start completion stream: %w", err), true)
		return
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		chunk, err := stream.Receive(n.ctx)
		if err != nil {
			n.publishError(cause, fmt.Errorf("receive completion chunk: %w", err), false)
			return
		}
		if chunk == nil || chunk.Done {
			break
		}
		reply.WriteString(chunk.Content)
	}

	response := strings.TrimSpace(reply.String())
	if response == "" {
		n.logger.Warn("model returned an empty reply", telemetry.String("event_id", cause.ID))
		return
	}

	n.recordExchange(text, response)

	out := core.NewCorrelatedEvent(core.EventNLPResponse, n.Name(), core.NLPResponsePayload{
		Text:  response,
		Model: n.config.Model,
	}, cause)
	if _, err := n.pub.Publish(out); err != nil {
		n.logger.Error("failed to publish reply", telemetry.Err(err))
		return
	}

	memory := core.NewCorrelatedEvent(core.EventMemoryUpdate, n.Name(), core.MemoryUpdatePayload{
		Role:    "assistant",
		Content: response,
	}, cause)
	if _, err := n.pub.Publish(memory); err != nil {
		n.logger.Debug("memory update publish skipped", telemetry.Err(err))
	}

	n.logger.Debug("reply published",
		telemetry.String("correlation_id", out.CorrelationID),
		telemetry.Int("reply_length", len(response)))
}

// buildMessages assembles system prompt, retained history, and the
// current user message.
func (n *NLP) buildMessages(text string) []providers.Message {
	n.mu.Lock()
	history := make([]providers.Message, len(n.history))
	copy(history, n.history)
	n.mu.Unlock()

	messages := make([]providers.Message, 0, len(history)+2)
	if n.config.SystemPrompt != "" {
		messages = append(messages, providers.Message{
			Role:    "system",
			Content: n.config.SystemPrompt,
		})
	}
	messages = append(messages, history...)
	messages = append(messages, providers.Message{Role: "user", Content: text})
	return messages
}

func (n *NLP) recordExchange(user, assistant string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.history = append(n.history,
		providers.Message{Role: "user", Content: user},
		providers.Message{Role: "assistant", Content: assistant},
	)
	if len(n.history) > n.config.MaxHistory {
		n.history = n.history[len(n.history)-n.config.MaxHistory:]
	}
}

func (n *NLP) publishError(cause core.Event, err error, retryable bool) {
	n.logger.Error("completion failed", telemetry.Err(err))
	out := core.NewCorrelatedEvent(core.EventError, n.Name(), core.ErrorPayload{
		Component: n.Name(),
		Message:   err.Error(),
		Retryable: retryable,
	}, cause)
	if _, pubErr := n.pub.Publish(out); pubErr != nil {
		n.logger.Debug("error event publish skipped", telemetry.Err(pubErr))
	}
}

// HealthCheck delegates to the provider
func (n *NLP) HealthCheck(ctx context.Context) error {
	return n.config.Provider.HealthCheck(ctx)
}

// Shutdown stops accepting work and waits for in-flight requests.
func (n *NLP) Shutdown(ctx context.Context) error {
	if n.cancel != nil {
		n.cancel()
	}

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.logger.Info("NLP processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Compile-time interface checks.
var (
	_ core.Component      = (*NLP)(nil)
	_ core.PublisherAware = (*NLP)(nil)
	_ core.HealthChecker  = (*NLP)(nil)
)
