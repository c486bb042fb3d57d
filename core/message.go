package core

import "strings"

// Conversation roles. RoleSystem only appears inside model requests and is
// never recorded in State.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Expert contributions recorded in the transcript are wrapped in these
// sentinels so downstream consumers can tell them apart from plain text.
const (
	ExpertOpen  = "<Ex>"
	ExpertClose = "</Ex>"
)

// Message is a single role tagged turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a user authored message.
func NewUserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }

// NewAssistantMessage creates an assistant authored message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// WrapExpert encloses text in the expert sentinels.
func WrapExpert(text string) string { return ExpertOpen + text + ExpertClose }

// UnwrapExpert strips one pair of expert sentinels if present. Text without
// both sentinels is returned unchanged.
func UnwrapExpert(text string) string {
	if strings.HasPrefix(text, ExpertOpen) && strings.HasSuffix(text, ExpertClose) {
		return text[len(ExpertOpen) : len(text)-len(ExpertClose)]
	}
	return text
}

// IsExpert reports whether text carries the expert sentinels.
func IsExpert(text string) bool {
	return strings.HasPrefix(text, ExpertOpen) && strings.HasSuffix(text, ExpertClose)
}
