package protocol

// InputMessageType defines client-to-server message types
type InputMessageType string

const (
	// User input
	InputText  InputMessageType = "input.text"  // Text message from user
	InputImage InputMessageType = "input.image" // Image frame for analysis

	// Actions
	InputAction InputMessageType = "action.execute" // Client requests an action
)

// InputMessage represents a message from client
type InputMessage struct {
	Type      InputMessageType `json:"type"`
	ID        string           `json:"id"` // Client-generated message ID
	Payload   any              `json:"payload"`
	Timestamp int64            `json:"timestamp"`
}

// TextInputPayload for input.text
type TextInputPayload struct {
	Text string `json:"text"`
}

// ImageInputPayload for input.image
type ImageInputPayload struct {
	Data   []byte `json:"data"`   // Base64 encoded image
	Format string `json:"format"` // "jpeg", "png"
}

// ActionInputPayload for action.execute
type ActionInputPayload struct {
	Command        string         `json:"command"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	Permission     string         `json:"permission"` // safe, moderate, elevated, restricted
	TimeoutSeconds float64        `json:"timeoutSeconds,omitempty"`
}
