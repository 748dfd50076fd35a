package components

import (
	"context"
	"fmt"
	"time"

	"github.com/creastat/infra/telemetry"

	"github.com/creastat/assistant/core"
)

// DefaultActionTimeout bounds command execution when the request does
// not carry its own timeout.
const DefaultActionTimeout = 30 * time.Second

// CommandRunner executes one named command with parameters
type CommandRunner interface {
	Run(ctx context.Context, command string, params map[string]any) (map[string]any, error)
}

// SystemControlConfig holds system control configuration
type SystemControlConfig struct {
	Runner CommandRunner

	// Policy gates which commands may run. Zero value denies
	// everything above moderate.
	Policy core.PermissionPolicy

	Logger telemetry.Logger
}

// SystemControl executes action requests under a permission policy.
// A request the policy refuses produces a permission_denied result
// without the runner ever being invoked. Every decision is logged.
type SystemControl struct {
	config SystemControlConfig
	logger telemetry.Logger
}

// NewSystemControl creates a system control component
func NewSystemControl(config SystemControlConfig) *SystemControl {
	if config.Policy.MaxLevel == "" {
		config.Policy = core.DefaultPermissionPolicy()
	}
	return &SystemControl{
		config: config,
		logger: config.Logger.WithModule("system_control"),
	}
}

// Name returns the component name
func (s *SystemControl) Name() string {
	return "system_control"
}

// Role returns the component role
func (s *SystemControl) Role() core.Role {
	return core.RoleAction
}

// Dependencies returns the components that must start first
func (s *SystemControl) Dependencies() []string {
	return nil
}

// Subscriptions returns the event types this component handles
func (s *SystemControl) Subscriptions() []core.EventType {
	return []core.EventType{core.EventExecuteAction}
}

// Initialize verifies the runner is configured
func (s *SystemControl) Initialize(_ context.Context) error {
	if s.config.Runner == nil {
		return fmt.Errorf("system_control: no command runner configured")
	}
	s.logger.Info("system control initialized",
		telemetry.String("max_permission", string(s.config.Policy.MaxLevel)),
		telemetry.Int("allowed_commands", len(s.config.Policy.AllowedCommands)))
	return nil
}

// HandleEvent checks the permission policy, runs the command, and
// returns an action result event either way.
func (s *SystemControl) HandleEvent(ctx context.Context, ev core.Event) (*core.Event, error) {
	req, ok := ev.Payload.(core.ExecuteActionPayload)
	if !ok {
		return nil, fmt.Errorf("system_control: unexpected payload %T for event %s", ev.Payload, ev.Type)
	}

	if err := s.config.Policy.Check(req.Command, req.Permission); err != nil {
		s.logger.Warn("action denied",
			telemetry.String("command", req.Command),
			telemetry.String("permission", string(req.Permission)),
			telemetry.Err(err))
		out := core.NewCorrelatedEvent(core.EventActionResult, s.Name(), core.ActionResultPayload{
			Command:      req.Command,
			Outcome:      core.OutcomePermissionDenied,
			ErrorMessage: err.Error(),
		}, ev)
		return &out, nil
	}

	timeout := DefaultActionTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds * float64(time.Second))
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("action started",
		telemetry.String("command", req.Command),
		telemetry.String("permission", string(req.Permission)))

	started := time.Now()
	data, err := s.config.Runner.Run(runCtx, req.Command, req.Parameters)
	elapsed := time.Since(started)

	result := core.ActionResultPayload{
		Command:       req.Command,
		ResultData:    data,
		ExecutionTime: elapsed,
	}
	switch {
	case err == nil:
		result.Outcome = core.OutcomeSuccess
		s.logger.Info("action succeeded",
			telemetry.String("command", req.Command),
			telemetry.Float64("elapsed_seconds", elapsed.Seconds()))
	case runCtx.Err() == context.DeadlineExceeded:
		result.Outcome = core.OutcomeTimeout
		result.ErrorMessage = fmt.Sprintf("command exceeded %s timeout", timeout)
		s.logger.Error("action timed out",
			telemetry.String("command", req.Command),
			telemetry.Float64("elapsed_seconds", elapsed.Seconds()))
	default:
		result.Outcome = core.OutcomeFailure
		result.ErrorMessage = err.Error()
		s.logger.Error("action failed",
			telemetry.String("command", req.Command),
			telemetry.Err(err))
	}

	out := core.NewCorrelatedEvent(core.EventActionResult, s.Name(), result, ev)
	return &out, nil
}

// Shutdown releases nothing: the runner is owned by the caller
func (s *SystemControl) Shutdown(_ context.Context) error {
	return nil
}

// Compile-time interface check.
var _ core.Component = (*SystemControl)(nil)
