package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType categorizes runtime events
type EventType string

const (
	EventTextInput       EventType = "text_input"
	EventVoiceInput      EventType = "voice_input"
	EventImageInput      EventType = "image_input"
	EventNLPResponse     EventType = "nlp_response"
	EventVisionResponse  EventType = "vision_response"
	EventContextUpdate   EventType = "context_update"
	EventContextResponse EventType = "context_response"
	EventSpeak           EventType = "speak"
	EventDisplayText     EventType = "display_text"
	EventUIUpdate        EventType = "ui_update"
	EventExecuteAction   EventType = "execute_action"
	EventActionResult    EventType = "action_result"
	EventMemoryUpdate    EventType = "memory_update"
	EventSystemStatus    EventType = "system_status"
	EventError           EventType = "error"
)

// EventTypeWildcard subscribes a handler to every event type
const EventTypeWildcard EventType = "*"

// Event is an immutable envelope carried by the bus. Payload holds one of
// the typed payload structs below; handlers must not mutate it after
// publication.
type Event struct {
	ID            string
	Type          EventType
	Payload       any
	Source        string
	CorrelationID string
	Time          time.Time
}

// NewEvent builds an event with a fresh identifier and timestamp. The
// correlation id defaults to the event's own id so that downstream
// events can chain from it.
func NewEvent(typ EventType, source string, payload any) Event {
	id := uuid.NewString()
	return Event{
		ID:            id,
		Type:          typ,
		Payload:       payload,
		Source:        source,
		CorrelationID: id,
		Time:          time.Now().UTC(),
	}
}

// NewCorrelatedEvent builds an event that continues the causal chain of a
// prior event.
func NewCorrelatedEvent(typ EventType, source string, payload any, cause Event) Event {
	ev := NewEvent(typ, source, payload)
	ev.CorrelationID = cause.CorrelationID
	return ev
}

// TextInputPayload carries user text entered through a keyboard-style input
type TextInputPayload struct {
	Text string
}

// VoiceInputPayload carries a transcribed utterance
type VoiceInputPayload struct {
	Text       string
	Confidence float64
	Language   string
}

// ImageInputPayload carries a captured frame for vision analysis
type ImageInputPayload struct {
	Data   []byte
	Format string
}

// NLPResponsePayload carries the assistant's reply to an input event
type NLPResponsePayload struct {
	Text       string
	Model      string
	TokensUsed int
}

// VisionResponsePayload carries the result of image analysis
type VisionResponsePayload struct {
	Description string
	Labels      []string
	Confidence  float64
}

// ContextQueryPayload requests relevant context for a query string
type ContextQueryPayload struct {
	Query string
	Limit int
}

// ContextEntry is one retrieved fragment of stored context
type ContextEntry struct {
	Content  string
	Score    float32
	SourceID string
}

// ContextResponsePayload carries retrieved context entries
type ContextResponsePayload struct {
	Entries []ContextEntry
}

// SpeakPayload requests speech synthesis of the given text
type SpeakPayload struct {
	Text     string
	Voice    string
	Language string
}

// DisplayTextPayload requests rendering of text on a display surface
type DisplayTextPayload struct {
	Text  string
	Style string
}

// UIUpdatePayload carries a structured update for a connected UI client
type UIUpdatePayload struct {
	Kind string
	Data map[string]any
}

// ExecuteActionPayload requests execution of a system command
type ExecuteActionPayload struct {
	Command        string
	Parameters     map[string]any
	Permission     PermissionLevel
	TimeoutSeconds float64
}

// ActionOutcome classifies the result of an action request
type ActionOutcome string

const (
	OutcomeSuccess          ActionOutcome = "success"
	OutcomeFailure          ActionOutcome = "failure"
	OutcomeTimeout          ActionOutcome = "timeout"
	OutcomePermissionDenied ActionOutcome = "permission_denied"
)

// ActionResultPayload reports what happened to an action request
type ActionResultPayload struct {
	Command       string
	Outcome       ActionOutcome
	ResultData    map[string]any
	ErrorMessage  string
	ExecutionTime time.Duration
}

// MemoryUpdatePayload records a conversation exchange for later recall
type MemoryUpdatePayload struct {
	Role    string
	Content string
}

// SystemStatusPayload is a periodic snapshot of component health
type SystemStatusPayload struct {
	Components map[string]ComponentState
	Uptime     time.Duration
}

// ErrorPayload reports a component failure on the bus
type ErrorPayload struct {
	Component string
	Message   string
	Retryable bool
}
