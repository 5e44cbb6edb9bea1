package context

import "strings"

// HistoryWindow bounds the transcript replayed to a backend: the most recent
// Size prior messages, oldest first. Blank messages carry nothing for the
// model and are dropped before counting. Size <= 0 keeps the whole transcript.
type HistoryWindow struct {
	Size int
}

func (w *HistoryWindow) Compress(messages []Message) []Message {
	kept := make([]Message, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) != "" {
			kept = append(kept, m)
		}
	}
	if w.Size <= 0 || len(kept) <= w.Size {
		return kept
	}
	return kept[len(kept)-w.Size:]
}
