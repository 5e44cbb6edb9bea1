package context

// Message is a model-agnostic chat message used across the context pipeline.
type Message struct {
	Role    string
	Content string
}

// Section is one enumerated block of domain context handed to the model,
// e.g. "Nearest pharmacies" with its JSON body.
type Section struct {
	Title string
	Body  string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
