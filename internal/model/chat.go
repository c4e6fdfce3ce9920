package model

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelConfig selects a generation model and temperature for one pipeline.
// In comparison mode two independent configs exist and never share state.
type ModelConfig struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
}

// AnswerLog is the record handed to the document store after a non-private
// exchange completes.
type AnswerLog struct {
	ID         string              `json:"id"`
	Question   string              `json:"question"`
	Answer     string              `json:"answer"`
	Collection string              `json:"collection"`
	Sources    []RetrievedDocument `json:"sources"`
	History    []ChatMessage       `json:"history"`
	IPHash     string              `json:"ip_hash"`
	Ctime      int64               `json:"ctime"`
}
