// Package dummy provides scripted stand-ins for the generation backend and
// the notifier, driven by comma-separated action scripts such as
// "err:timeout,msg:hello,sleep:50,echo".
package dummy

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	ctxpkg "github.com/stupiduntilnot/pharmassist/internal/context"
	"github.com/stupiduntilnot/pharmassist/internal/model"
)

type action struct {
	kind string
	arg  string
}

var actionKinds = []string{"err", "sleep", "msg", "msgb64"}

func parseScript(script string) ([]action, error) {
	if strings.TrimSpace(script) == "" {
		return []action{{kind: "ok"}}, nil
	}
	parts := strings.Split(script, ",")
	actions := make([]action, 0, len(parts))
next:
	for _, p := range parts {
		token := strings.TrimSpace(p)
		switch token {
		case "":
			continue
		case "ok", "echo":
			actions = append(actions, action{kind: token})
			continue
		}
		for _, kind := range actionKinds {
			if arg, ok := strings.CutPrefix(token, kind+":"); ok {
				actions = append(actions, action{kind: kind, arg: arg})
				continue next
			}
		}
		return nil, fmt.Errorf("invalid dummy action: %s", token)
	}
	if len(actions) == 0 {
		actions = append(actions, action{kind: "ok"})
	}
	return actions, nil
}

// scriptRunner replays actions in order and then repeats the last one.
type scriptRunner struct {
	mu      sync.Mutex
	actions []action
	index   int
}

func newRunner(script string) (*scriptRunner, error) {
	actions, err := parseScript(script)
	if err != nil {
		return nil, err
	}
	return &scriptRunner{actions: actions}, nil
}

func (r *scriptRunner) next() action {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.actions) == 0 {
		return action{kind: "ok"}
	}
	if r.index >= len(r.actions) {
		return r.actions[len(r.actions)-1]
	}
	a := r.actions[r.index]
	r.index++
	return a
}

func sleep(ctx context.Context, arg string) error {
	ms, _ := strconv.Atoi(arg)
	if ms <= 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backend is a scripted model.Backend.
type Backend struct {
	script *scriptRunner
}

func NewBackend(script string) (*Backend, error) {
	runner, err := newRunner(script)
	if err != nil {
		return nil, err
	}
	return &Backend{script: runner}, nil
}

func (b *Backend) Name() string { return "dummy" }

func (b *Backend) Complete(ctx context.Context, req model.Request) (model.CompletionResponse, error) {
	reply := func(content string) (model.CompletionResponse, error) {
		return model.CompletionResponse{Content: content, InputTokens: 1, OutputTokens: 1}, nil
	}

	a := b.script.next()
	switch a.kind {
	case "err":
		return model.CompletionResponse{}, fmt.Errorf("dummy provider error class=%s", emptyAs(a.arg, "provider_api"))
	case "sleep":
		if err := sleep(ctx, a.arg); err != nil {
			return model.CompletionResponse{}, err
		}
		return reply("dummy-after-sleep")
	case "msg":
		return reply(a.arg)
	case "msgb64":
		raw, err := base64.StdEncoding.DecodeString(a.arg)
		if err != nil {
			return model.CompletionResponse{}, fmt.Errorf("dummy provider msgb64 decode failed: %w", err)
		}
		return reply(string(raw))
	case "echo":
		return reply(lastUserTurn(req.Turns))
	default:
		return reply(emptyAs(a.arg, "dummy-ok"))
	}
}

func lastUserTurn(turns []ctxpkg.Message) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == ctxpkg.RoleUser {
			return turns[i].Content
		}
	}
	return "dummy-ok"
}

// Notifier is a scripted notifier that records what it was asked to send.
type Notifier struct {
	script *scriptRunner

	mu     sync.Mutex
	sent   []string
	closed bool
}

func NewNotifier(script string) (*Notifier, error) {
	runner, err := newRunner(script)
	if err != nil {
		return nil, err
	}
	return &Notifier{script: runner}, nil
}

func (n *Notifier) Notify(ctx context.Context, userID, text string) error {
	a := n.script.next()
	switch a.kind {
	case "err":
		return fmt.Errorf("dummy notifier send error class=%s", emptyAs(a.arg, "notify_api"))
	case "sleep":
		if err := sleep(ctx, a.arg); err != nil {
			return err
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, userID+": "+text)
	return nil
}

// Sent returns the notifications delivered so far.
func (n *Notifier) Sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (n *Notifier) Closed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

func emptyAs(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
