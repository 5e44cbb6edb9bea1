// Package assistant runs one conversational turn end to end: persist the
// user message, assemble context, generate, augment, persist and notify.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stupiduntilnot/pharmassist/internal/aggregator"
	"github.com/stupiduntilnot/pharmassist/internal/db"
	"github.com/stupiduntilnot/pharmassist/internal/domain"
	"github.com/stupiduntilnot/pharmassist/internal/gateway"
	"github.com/stupiduntilnot/pharmassist/internal/logging"
	"github.com/stupiduntilnot/pharmassist/internal/notify"
	"github.com/stupiduntilnot/pharmassist/internal/postprocess"
	"github.com/stupiduntilnot/pharmassist/internal/store"
)

// ErrEmptyTurn is returned for a blank user message.
var ErrEmptyTurn = errors.New("empty message")

// EventLogger records turn lifecycle events. db.EventLog implements it.
type EventLogger interface {
	Log(parentID *int64, eventType string, payload map[string]any) (int64, error)
}

// Deps are the collaborators of a Service. Notifier, Events and Logger are
// optional. Turn events are children of ParentEventID when it is set.
type Deps struct {
	ParentEventID *int64
	Transcript    store.Transcript
	Aggregator    *aggregator.Aggregator
	Gateway       *gateway.Gateway
	Notifier      notify.Notifier
	Events        EventLogger
	HistoryWindow int
	Logger        *zap.Logger
}

// Service handles turns. It is safe for concurrent use; turns for the same
// user are not serialized and replies are persisted in completion order.
type Service struct {
	parentEventID *int64
	transcript    store.Transcript
	aggregator    *aggregator.Aggregator
	gateway       *gateway.Gateway
	notifier      notify.Notifier
	events        EventLogger
	historyWindow int
	logger        *zap.Logger
	now           func() time.Time
}

func New(d Deps) *Service {
	s := &Service{
		parentEventID: d.ParentEventID,
		transcript:    d.Transcript,
		aggregator:    d.Aggregator,
		gateway:       d.Gateway,
		notifier:      d.Notifier,
		events:        d.Events,
		historyWindow: d.HistoryWindow,
		logger:        logging.OrNop(d.Logger),
		now:           time.Now,
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.events == nil {
		s.events = db.EventLog{}
	}
	return s
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	TurnEventID int64
	Reply       domain.ConversationMessage
	Context     *domain.ConversationContext
	Failures    []*aggregator.FetchError
	// ProviderErr is set when the reply is the apology.
	ProviderErr error
}

// HandleTurn processes text from userID. Generation failures do not fail the
// turn: the apology is persisted and returned, with ProviderErr set. An error
// is returned only when the turn could not be recorded or ctx ended.
func (s *Service) HandleTurn(ctx context.Context, userID, text string) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyTurn
	}

	turnID := s.logEvent(s.parentEventID, db.EventTurnStarted, map[string]any{
		"user_id":  userID,
		"text_len": len(text),
		"backend":  s.gateway.Backend(),
	})
	parent := &turnID
	if turnID == 0 {
		parent = nil
	}

	userMsg := domain.ConversationMessage{
		ID:        uuid.NewString(),
		Role:      domain.RoleUser,
		Content:   text,
		Timestamp: s.now().UTC(),
	}
	if err := s.transcript.AppendMessage(ctx, userID, userMsg); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	built, err := s.aggregator.Build(ctx, userID, text)
	if err != nil {
		return nil, fmt.Errorf("assemble context: %w", err)
	}
	counts := built.Counts()
	payload := map[string]any{"failures": len(built.Failures)}
	for k, v := range counts {
		payload[k] = v
	}
	s.logEvent(parent, db.EventContextAssembled, payload)
	for _, f := range built.Failures {
		s.logEvent(parent, db.EventFetchFailed, map[string]any{
			"slice": f.Slice,
			"error": f.Err.Error(),
		})
	}

	// The generation works on a private copy of the context.
	snapshot := built.Context.Clone()

	history, err := s.history(ctx, userID, userMsg.ID)
	if err != nil {
		s.logger.Warn("failed to load history", zap.String("user_id", userID), zap.Error(err))
	}

	result := &TurnResult{
		TurnEventID: turnID,
		Context:     built.Context,
		Failures:    built.Failures,
	}

	reply, genErr := s.gateway.Generate(ctx, text, snapshot, history)
	content := reply.Text
	if genErr != nil {
		result.ProviderErr = genErr
		s.logEvent(parent, db.EventProviderFailed, map[string]any{
			"backend":    s.gateway.Backend(),
			"latency_ms": reply.Latency.Milliseconds(),
		})
	} else {
		s.logEvent(parent, db.EventProviderCompleted, map[string]any{
			"backend":       s.gateway.Backend(),
			"latency_ms":    reply.Latency.Milliseconds(),
			"input_tokens":  reply.InputTokens,
			"output_tokens": reply.OutputTokens,
		})
		augmented := postprocess.Augment(content, snapshot)
		s.logEvent(parent, db.EventReplyAugmented, map[string]any{
			"links":          countLinks(augmented) - countLinks(content),
			"medical_topics": postprocess.MedicalTopics(content),
		})
		content = augmented
	}

	result.Reply = domain.ConversationMessage{
		ID:        uuid.NewString(),
		Role:      domain.RoleAssistant,
		Content:   content,
		Timestamp: s.now().UTC(),
	}
	if err := s.transcript.AppendMessage(ctx, userID, result.Reply); err != nil {
		return result, fmt.Errorf("persist assistant reply: %w", err)
	}
	s.logEvent(parent, db.EventReplyPersisted, map[string]any{
		"message_id": result.Reply.ID,
		"chars":      len(content),
	})

	if err := s.notifier.Notify(ctx, userID, content); err != nil {
		s.logger.Warn("notification failed", zap.String("user_id", userID), zap.Error(err))
		s.logEvent(parent, db.EventNotifyFailed, map[string]any{"error": err.Error()})
	}
	return result, nil
}

// history returns the windowed transcript preceding the current turn.
func (s *Service) history(ctx context.Context, userID, currentID string) ([]domain.ConversationMessage, error) {
	limit := 0
	if s.historyWindow > 0 {
		limit = s.historyWindow + 1
	}
	msgs, err := s.transcript.Messages(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := msgs[:0:0]
	for _, m := range msgs {
		if m.ID != currentID {
			out = append(out, m)
		}
	}
	if s.historyWindow > 0 && len(out) > s.historyWindow {
		out = out[len(out)-s.historyWindow:]
	}
	return out, nil
}

// History returns the last limit transcript messages for userID.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]domain.ConversationMessage, error) {
	return s.transcript.Messages(ctx, userID, limit)
}

func (s *Service) logEvent(parentID *int64, eventType string, payload map[string]any) int64 {
	id, err := s.events.Log(parentID, eventType, payload)
	if err != nil {
		s.logger.Warn("failed to log event", zap.String("event", eventType), zap.Error(err))
		return 0
	}
	return id
}

func countLinks(text string) int {
	n := 0
	for _, seg := range postprocess.ExtractLinks(text) {
		if seg.IsLink() {
			n++
		}
	}
	return n
}
