package components

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/creastat/infra/telemetry"

	"github.com/creastat/assistant/core"
)

// DisplayOutputConfig holds display output configuration
type DisplayOutputConfig struct {
	// Writer receives rendered text, such as stdout or a terminal UI.
	Writer io.Writer

	// ShowVision also renders image analysis descriptions.
	ShowVision bool

	Logger telemetry.Logger
}

// DisplayOutput renders assistant text onto a writer.
type DisplayOutput struct {
	config DisplayOutputConfig
	logger telemetry.Logger

	mu sync.Mutex
}

// NewDisplayOutput creates a display output component
func NewDisplayOutput(config DisplayOutputConfig) *DisplayOutput {
	return &DisplayOutput{
		config: config,
		logger: config.Logger.WithModule("display_output"),
	}
}

// Name returns the component name
func (d *DisplayOutput) Name() string {
	return "display_output"
}

// Role returns the component role
func (d *DisplayOutput) Role() core.Role {
	return core.RoleOutput
}

// Dependencies returns the components that must start first
func (d *DisplayOutput) Dependencies() []string {
	return nil
}

// Subscriptions returns the event types this component handles
func (d *DisplayOutput) Subscriptions() []core.EventType {
	types := []core.EventType{core.EventDisplayText, core.EventNLPResponse}
	if d.config.ShowVision {
		types = append(types, core.EventVisionResponse)
	}
	return types
}

// Initialize verifies the writer is configured
func (d *DisplayOutput) Initialize(_ context.Context) error {
	if d.config.Writer == nil {
		return fmt.Errorf("display_output: no writer configured")
	}
	d.logger.Info("display output initialized")
	return nil
}

// HandleEvent writes the event's text followed by a newline
func (d *DisplayOutput) HandleEvent(_ context.Context, ev core.Event) (*core.Event, error) {
	var text string
	switch p := ev.Payload.(type) {
	case core.DisplayTextPayload:
		text = p.Text
	case core.NLPResponsePayload:
		text = p.Text
	case core.VisionResponsePayload:
		text = p.Description
	default:
		return nil, fmt.Errorf("display_output: unexpected payload %T for event %s", ev.Payload, ev.Type)
	}
	if text == "" {
		return nil, nil
	}

	d.mu.Lock()
	_, err := fmt.Fprintln(d.config.Writer, text)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("display_output: write: %w", err)
	}
	return nil, nil
}

// Shutdown releases nothing: the writer is owned by the caller
func (d *DisplayOutput) Shutdown(_ context.Context) error {
	return nil
}

// Compile-time interface check.
var _ core.Component = (*DisplayOutput)(nil)
