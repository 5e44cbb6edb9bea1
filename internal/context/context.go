package context

// Compressor reduces a list of messages to fit within constraints.
type Compressor interface {
	Compress(messages []Message) []Message
}

// Assembler orders instructions, context sections and conversation turns
// into a final message list.
type Assembler interface {
	Assemble(system string, sections []Section, turns []Message) []Message
}
