package components

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/creastat/infra/telemetry"

	"github.com/creastat/assistant/core"
)

// TextInputConfig holds text input configuration
type TextInputConfig struct {
	// Reader, when set, is scanned line by line and each non-empty line
	// is published as a text input event. Leave nil to publish only
	// through Submit.
	Reader io.Reader

	Logger telemetry.Logger
}

// TextInput publishes user text onto the bus, either programmatically
// through Submit or from a line-oriented reader such as stdin.
type TextInput struct {
	config TextInputConfig
	logger telemetry.Logger
	pub    core.Publisher

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTextInput creates a text input component
func NewTextInput(config TextInputConfig) *TextInput {
	return &TextInput{
		config: config,
		logger: config.Logger.WithModule("text_input"),
	}
}

// Name returns the component name
func (t *TextInput) Name() string {
	return "text_input"
}

// Role returns the component role
func (t *TextInput) Role() core.Role {
	return core.RoleInput
}

// Dependencies returns the components that must start first
func (t *TextInput) Dependencies() []string {
	return nil
}

// Subscriptions returns the event types this component handles
func (t *TextInput) Subscriptions() []core.EventType {
	return nil
}

// SetPublisher stores the bus handle
func (t *TextInput) SetPublisher(pub core.Publisher) {
	t.pub = pub
}

// Initialize starts the reader pump when a reader is configured
func (t *TextInput) Initialize(_ context.Context) error {
	if t.pub == nil {
		return fmt.Errorf("text_input: no publisher configured")
	}

	if t.config.Reader != nil {
		ctx, cancel := context.WithCancel(context.Background())
		t.cancel = cancel
		t.wg.Add(1)
		go t.pump(ctx)
	}

	t.logger.Info("text input initialized")
	return nil
}

// Submit publishes one line of user text
func (t *TextInput) Submit(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("text_input: empty text")
	}

	ev := core.NewEvent(core.EventTextInput, t.Name(), core.TextInputPayload{Text: text})
	accepted, err := t.pub.Publish(ev)
	if err != nil {
		return fmt.Errorf("text_input: publish: %w", err)
	}

	t.logger.Debug("text submitted",
		telemetry.String("event_id", ev.ID),
		telemetry.Int("subscribers", accepted))
	return nil
}

// pump scans the reader and submits each non-empty line.
func (t *TextInput) pump(ctx context.Context) {
	defer t.wg.Done()

	scanner := bufio.NewScanner(t.config.Reader)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := t.Submit(line); err != nil {
			t.logger.Warn("line skipped", telemetry.Err(err))
		}
	}
	if err := scanner.Err(); err != nil {
		t.logger.Error("reader failed", telemetry.Err(err))
	}
}

// HandleEvent is never called: the component has no subscriptions
func (t *TextInput) HandleEvent(_ context.Context, ev core.Event) (*core.Event, error) {
	return nil, fmt.Errorf("text_input: unexpected event %s", ev.Type)
}

// Shutdown stops the reader pump. A blocked Scan ends when the
// underlying reader is closed by its owner.
func (t *TextInput) Shutdown(ctx context.Context) error {
	if t.cancel == nil {
		return nil
	}
	t.cancel()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Compile-time interface checks.
var (
	_ core.Component      = (*TextInput)(nil)
	_ core.PublisherAware = (*TextInput)(nil)
)
