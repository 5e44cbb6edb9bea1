package context

import "github.com/stupiduntilnot/pharmassist/internal/domain"

// FromConversation maps persisted transcript entries onto model messages.
func FromConversation(msgs []domain.ConversationMessage) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		role := RoleUser
		if m.Role == domain.RoleAssistant {
			role = RoleAssistant
		}
		out = append(out, Message{Role: role, Content: m.Content})
	}
	return out
}
