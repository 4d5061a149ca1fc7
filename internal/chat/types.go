package chat

// Message roles understood by OpenAI-compatible chat APIs.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleDeveloper = "developer"
)

// Message is one entry of the conversation log sent verbatim to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
