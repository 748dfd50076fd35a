package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/creastat/assistant/core"
)

// EventToMessage converts a runtime event to an output message.
// Returns nil for event types that have no client representation.
func EventToMessage(ev core.Event) *OutputMessage {
	msg := &OutputMessage{
		ID:            ev.ID,
		CorrelationID: ev.CorrelationID,
		Timestamp:     ev.Time.UnixMilli(),
	}

	switch p := ev.Payload.(type) {
	case core.NLPResponsePayload:
		msg.Type = OutputText
		msg.Payload = TextOutputPayload{Text: p.Text}

	case core.DisplayTextPayload:
		msg.Type = OutputText
		msg.Payload = TextOutputPayload{Text: p.Text, Style: p.Style}

	case core.SpeakPayload:
		msg.Type = OutputSpeech
		msg.Payload = SpeechOutputPayload{
			Text:     p.Text,
			Voice:    p.Voice,
			Language: p.Language,
		}

	case core.VisionResponsePayload:
		msg.Type = OutputVision
		msg.Payload = VisionOutputPayload{
			Description: p.Description,
			Labels:      p.Labels,
			Confidence:  p.Confidence,
		}

	case core.UIUpdatePayload:
		msg.Type = OutputUIUpdate
		msg.Payload = UIUpdatePayload{Kind: p.Kind, Data: p.Data}

	case core.SystemStatusPayload:
		components := make(map[string]string, len(p.Components))
		for name, state := range p.Components {
			components[name] = string(state)
		}
		msg.Type = OutputStatus
		msg.Payload = StatusPayload{
			Components:    components,
			UptimeSeconds: p.Uptime.Seconds(),
		}

	case core.ActionResultPayload:
		msg.Type = OutputActionResult
		msg.Payload = ActionResultPayload{
			Command:       p.Command,
			Outcome:       string(p.Outcome),
			ResultData:    p.ResultData,
			Error:         p.ErrorMessage,
			ExecutionTime: p.ExecutionTime.Seconds(),
		}

	case core.ErrorPayload:
		msg.Type = OutputError
		msg.Payload = ErrorPayload{
			Component: p.Component,
			Message:   p.Message,
			Retryable: p.Retryable,
		}

	default:
		// No client representation for this event type.
		return nil
	}

	return msg
}

// MessageToEvent converts a client input message to a runtime event
// published under the given source name.
func MessageToEvent(msg InputMessage, source string) (core.Event, error) {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return core.Event{}, fmt.Errorf("encode payload: %w", err)
	}

	switch msg.Type {
	case InputText:
		var p TextInputPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return core.Event{}, fmt.Errorf("decode %s payload: %w", msg.Type, err)
		}
		if p.Text == "" {
			return core.Event{}, fmt.Errorf("%s payload has empty text", msg.Type)
		}
		return core.NewEvent(core.EventTextInput, source, core.TextInputPayload{Text: p.Text}), nil

	case InputImage:
		var p ImageInputPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return core.Event{}, fmt.Errorf("decode %s payload: %w", msg.Type, err)
		}
		if len(p.Data) == 0 {
			return core.Event{}, fmt.Errorf("%s payload has no data", msg.Type)
		}
		return core.NewEvent(core.EventImageInput, source, core.ImageInputPayload{
			Data:   p.Data,
			Format: p.Format,
		}), nil

	case InputAction:
		var p ActionInputPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return core.Event{}, fmt.Errorf("decode %s payload: %w", msg.Type, err)
		}
		if p.Command == "" {
			return core.Event{}, fmt.Errorf("%s payload has empty command", msg.Type)
		}
		level := core.PermissionLevel(p.Permission)
		if p.Permission == "" {
			level = core.PermissionSafe
		}
		return core.NewEvent(core.EventExecuteAction, source, core.ExecuteActionPayload{
			Command:        p.Command,
			Parameters:     p.Parameters,
			Permission:     level,
			TimeoutSeconds: p.TimeoutSeconds,
		}), nil

	default:
		return core.Event{}, fmt.Errorf("unknown input message type %q", msg.Type)
	}
}
