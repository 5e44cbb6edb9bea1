// Package gateway dispatches a turn to the configured generation backend
// with a uniform prompt layout, and masks runtime failures from users.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	ctxpkg "github.com/stupiduntilnot/pharmassist/internal/context"
	"github.com/stupiduntilnot/pharmassist/internal/domain"
	"github.com/stupiduntilnot/pharmassist/internal/logging"
	"github.com/stupiduntilnot/pharmassist/internal/model"
)

// ApologyMessage is the only text users see when generation fails.
const ApologyMessage = "Sorry, I couldn't answer that right now. Please send your message again in a moment."

// EmptyReplyMessage replaces a successful generation that produced no text.
const EmptyReplyMessage = "Sorry, I don't have an answer for that. Could you rephrase your question?"

// Instructions is the system prompt shared by every backend.
const Instructions = `You are the shopping assistant of a pharmacy marketplace app.
Answer using only the numbered context sections that follow. Do not mention any pharmacy, product, price, stock level, order, prescription or link that is not present in the context; if the answer is not there, say you don't have that information.
When you mention a pharmacy, product, order or the cart, link it with its url from the context in markdown, e.g. [Name](url).
Keep replies short and friendly. You are not a doctor: do not diagnose, and suggest talking to a pharmacist for medical questions.`

// Reply is the outcome of one generation.
type Reply struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
}

// Gateway sends turns to a single backend chosen at construction.
type Gateway struct {
	backend    model.Backend
	compressor ctxpkg.Compressor
	logger     *zap.Logger
}

// New creates a Gateway. historyWindow bounds how many prior transcript
// messages are sent; <= 0 sends them all.
func New(backend model.Backend, historyWindow int, logger *zap.Logger) *Gateway {
	return &Gateway{
		backend:    backend,
		compressor: &ctxpkg.HistoryWindow{Size: historyWindow},
		logger:     logging.OrNop(logger),
	}
}

// Backend returns the name of the configured backend.
func (g *Gateway) Backend() string { return g.backend.Name() }

// Generate produces the assistant reply for turn. On a backend failure the
// reply text is ApologyMessage and the error is a *model.ProviderError; the
// failure is logged with secrets redacted. There is no retry.
func (g *Gateway) Generate(ctx context.Context, turn string, snapshot *domain.ConversationContext, history []domain.ConversationMessage) (Reply, error) {
	req := g.BuildRequest(turn, snapshot, history)

	start := time.Now()
	resp, err := g.backend.Complete(ctx, req)
	latency := time.Since(start)
	if err != nil {
		pe := &model.ProviderError{Backend: g.backend.Name(), Err: err}
		var cfgErr *model.ConfigurationError
		if !errors.As(err, &cfgErr) {
			msg, _ := redactSecrets(err.Error())
			g.logger.Error("generation failed",
				zap.String("backend", pe.Backend),
				zap.Duration("latency", latency),
				zap.String("error", truncate(msg, 400)),
			)
		}
		return Reply{Text: ApologyMessage, Latency: latency}, pe
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" || text == model.EmptyResponse {
		g.logger.Warn("backend returned no text", zap.String("backend", g.backend.Name()))
		text = EmptyReplyMessage
	}
	g.logger.Debug("generation completed",
		zap.String("backend", g.backend.Name()),
		zap.Duration("latency", latency),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens),
	)
	return Reply{
		Text:         text,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Latency:      latency,
	}, nil
}

// BuildRequest lays out instructions, the context sections, and the
// windowed history followed by the current turn.
func (g *Gateway) BuildRequest(turn string, snapshot *domain.ConversationContext, history []domain.ConversationMessage) model.Request {
	turns := g.compressor.Compress(ctxpkg.FromConversation(history))
	turns = append(turns[:len(turns):len(turns)], ctxpkg.Message{Role: ctxpkg.RoleUser, Content: turn})
	return model.Request{
		System:   Instructions,
		Sections: Sections(snapshot),
		Turns:    turns,
	}
}

// Sections renders the context snapshot as titled JSON blocks in a fixed
// order. Empty slices are omitted.
func Sections(cc *domain.ConversationContext) []ctxpkg.Section {
	if cc == nil {
		return nil
	}
	var out []ctxpkg.Section
	add := func(title string, v any, n int) {
		if n == 0 {
			return
		}
		body, err := json.Marshal(v)
		if err != nil {
			return
		}
		out = append(out, ctxpkg.Section{Title: title, Body: string(body)})
	}
	if cc.UserInfo != nil {
		add("User profile", cc.UserInfo, 1)
	}
	if cc.UserLocation != nil {
		add("User location", cc.UserLocation, 1)
	}
	add("Nearest pharmacies", cc.NearestPharmacies, len(cc.NearestPharmacies))
	add("Pharmacies", cc.PharmacyInfo, len(cc.PharmacyInfo))
	add("Products", cc.ProductInfo, len(cc.ProductInfo))
	add("Cart", cc.CartInfo, len(cc.CartInfo))
	add("Orders", cc.OrderInfo, len(cc.OrderInfo))
	add("Prescriptions", cc.PrescriptionInfo, len(cc.PrescriptionInfo))
	return out
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
