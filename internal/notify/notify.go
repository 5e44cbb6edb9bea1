// Package notify delivers persisted assistant replies out of band.
// The notifier is built once by the composition root and closed on shutdown.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/stupiduntilnot/pharmassist/internal/domain"
	"github.com/stupiduntilnot/pharmassist/internal/store"
)

// ErrClosed is returned by Notify after Close.
var ErrClosed = errors.New("notifier closed")

// Notifier is told about each assistant reply after it is persisted.
type Notifier interface {
	Notify(ctx context.Context, userID, text string) error
	Close() error
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, string, string) error { return nil }
func (Nop) Close() error                                 { return nil }

// Sender is the transport used by Telegram; *telegram.Client satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Telegram pushes replies to the chat id stored on the user's profile
// ("telegramChatId"). Users without a linked chat are skipped.
type Telegram struct {
	sender Sender
	users  store.Reader

	mu     sync.RWMutex
	closed bool
}

func NewTelegram(sender Sender, users store.Reader) *Telegram {
	return &Telegram{sender: sender, users: users}
}

func (t *Telegram) Notify(ctx context.Context, userID, text string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrClosed
	}

	profile, err := t.users.Get(ctx, domain.CollectionUsers, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	raw := store.String(profile, "telegramChatId")
	if raw == "" {
		return nil
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id on profile")
	}
	return t.sender.SendMessage(ctx, chatID, text)
}

// Close waits for in-flight sends and rejects later ones.
func (t *Telegram) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
