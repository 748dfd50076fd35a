package protocol

// OutputMessageType defines server-to-client message types
type OutputMessageType string

const (
	// Assistant responses
	OutputText   OutputMessageType = "output.text"   // Assistant text reply
	OutputSpeech OutputMessageType = "output.speech" // Synthesized speech chunk
	OutputVision OutputMessageType = "output.vision" // Image analysis result

	// UI state
	OutputUIUpdate OutputMessageType = "ui.update" // Structured UI update
	OutputStatus   OutputMessageType = "status"    // Component health snapshot

	// Actions
	OutputActionResult OutputMessageType = "action.result" // Result of an executed action

	// Errors
	OutputError OutputMessageType = "error"
)

// OutputMessage represents a message to client
type OutputMessage struct {
	Type          OutputMessageType `json:"type"`
	ID            string            `json:"id"`                      // Event that produced this message
	CorrelationID string            `json:"correlationId,omitempty"` // Input event this answers
	Payload       any               `json:"payload"`
	Timestamp     int64             `json:"timestamp"`
}

// TextOutputPayload for output.text
type TextOutputPayload struct {
	Text  string `json:"text"`
	Style string `json:"style,omitempty"`
}

// SpeechOutputPayload for output.speech
type SpeechOutputPayload struct {
	Text     string `json:"text"`
	Voice    string `json:"voice,omitempty"`
	Language string `json:"language,omitempty"`
}

// VisionOutputPayload for output.vision
type VisionOutputPayload struct {
	Description string   `json:"description"`
	Labels      []string `json:"labels,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`
}

// UIUpdatePayload for ui.update
type UIUpdatePayload struct {
	Kind string         `json:"kind"`
	Data map[string]any `json:"data,omitempty"`
}

// StatusPayload for status messages
type StatusPayload struct {
	Components    map[string]string `json:"components"`
	UptimeSeconds float64           `json:"uptimeSeconds"`
}

// ActionResultPayload for action.result
type ActionResultPayload struct {
	Command       string         `json:"command"`
	Outcome       string         `json:"outcome"` // success, failure, timeout, permission_denied
	ResultData    map[string]any `json:"resultData,omitempty"`
	Error         string         `json:"error,omitempty"`
	ExecutionTime float64        `json:"executionTime,omitempty"` // Seconds
}

// ErrorPayload for error messages
type ErrorPayload struct {
	Component string `json:"component,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
