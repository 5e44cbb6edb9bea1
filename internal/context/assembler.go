package context

import (
	"fmt"
	"strings"
)

// StandardAssembler produces the message-array layout: the instructions as a
// system message, the context sections as a second system message, then the
// conversation turns in order.
type StandardAssembler struct{}

// Assemble builds the final message list: system + sections + turns.
func (a *StandardAssembler) Assemble(system string, sections []Section, turns []Message) []Message {
	messages := make([]Message, 0, 2+len(turns))
	messages = append(messages, Message{Role: RoleSystem, Content: system})
	if rendered := RenderSections(sections); rendered != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: rendered})
	}
	messages = append(messages, turns...)
	return messages
}

// RenderSections numbers each section and joins them into one block.
// Sections with an empty body are skipped.
func RenderSections(sections []Section) string {
	var b strings.Builder
	n := 0
	for _, s := range sections {
		if strings.TrimSpace(s.Body) == "" {
			continue
		}
		n++
		if n > 1 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s:\n%s", n, s.Title, s.Body)
	}
	return b.String()
}

// FlattenPrompt produces the concatenated-prompt layout used by backends that
// take a single string: instructions, context, prior turns and the open
// assistant slot, in that order.
func FlattenPrompt(system string, sections []Section, turns []Message) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(system))
	if rendered := RenderSections(sections); rendered != "" {
		b.WriteString("\n\nContext:\n")
		b.WriteString(rendered)
	}
	if len(turns) > 0 {
		b.WriteString("\n\nConversation:")
		for _, t := range turns {
			b.WriteString("\n")
			b.WriteString(speaker(t.Role))
			b.WriteString(": ")
			b.WriteString(t.Content)
		}
	}
	b.WriteString("\nAssistant:")
	return b.String()
}

func speaker(role string) string {
	switch role {
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return "User"
	}
}
