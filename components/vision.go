package components

import (
	"context"
	"fmt"

	"github.com/creastat/infra/telemetry"

	"github.com/creastat/assistant/core"
)

// ImageAnalyzer produces a description of an image frame
type ImageAnalyzer interface {
	Analyze(ctx context.Context, data []byte, format string) (core.VisionResponsePayload, error)
}

// VisionConfig holds vision processor configuration
type VisionConfig struct {
	Analyzer ImageAnalyzer
	Logger   telemetry.Logger
}

// Vision analyzes image input events and returns the analysis as a
// vision response. The response event is published by the runtime with
// the input event's correlation id.
type Vision struct {
	config VisionConfig
	logger telemetry.Logger
}

// NewVision creates a vision processor
func NewVision(config VisionConfig) *Vision {
	return &Vision{
		config: config,
		logger: config.Logger.WithModule("vision"),
	}
}

// Name returns the component name
func (v *Vision) Name() string {
	return "vision"
}

// Role returns the component role
func (v *Vision) Role() core.Role {
	return core.RoleProcessor
}

// Dependencies returns the components that must start first
func (v *Vision) Dependencies() []string {
	return nil
}

// Subscriptions returns the event types this component handles
func (v *Vision) Subscriptions() []core.EventType {
	return []core.EventType{core.EventImageInput}
}

// Initialize verifies the analyzer is configured
func (v *Vision) Initialize(_ context.Context) error {
	if v.config.Analyzer == nil {
		return fmt.Errorf("vision: no image analyzer configured")
	}
	v.logger.Info("vision processor initialized")
	return nil
}

// HandleEvent analyzes the frame and returns a vision response event
func (v *Vision) HandleEvent(ctx context.Context, ev core.Event) (*core.Event, error) {
	payload, ok := ev.Payload.(core.ImageInputPayload)
	if !ok {
		return nil, fmt.Errorf("vision: unexpected payload %T for event %s", ev.Payload, ev.Type)
	}
	if len(payload.Data) == 0 {
		return nil, fmt.Errorf("vision: image event %s has no data", ev.ID)
	}

	result, err := v.config.Analyzer.Analyze(ctx, payload.Data, payload.Format)
	if err != nil {
		return nil, fmt.Errorf("vision: analyze: %w", err)
	}

	v.logger.Debug("image analyzed",
		telemetry.String("event_id", ev.ID),
		telemetry.Float64("confidence", result.Confidence))

	out := core.NewCorrelatedEvent(core.EventVisionResponse, v.Name(), result, ev)
	return &out, nil
}

// Shutdown releases nothing: the analyzer is owned by the caller
func (v *Vision) Shutdown(_ context.Context) error {
	return nil
}

// Compile-time interface check.
var _ core.Component = (*Vision)(nil)
