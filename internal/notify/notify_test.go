package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupiduntilnot/pharmassist/internal/domain"
	"github.com/stupiduntilnot/pharmassist/internal/store"
)

type sent struct {
	chatID int64
	text   string
}

type fakeSender struct {
	sent []sent
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{chatID, text})
	return nil
}

func testUsers(t *testing.T) store.Store {
	t.Helper()
	s, err := store.OpenSQLite(t.TempDir() + "/notify.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, domain.CollectionUsers, "linked", store.Document{"telegramChatId": 4242}))
	require.NoError(t, s.Put(ctx, domain.CollectionUsers, "unlinked", store.Document{"name": "Ana"}))
	require.NoError(t, s.Put(ctx, domain.CollectionUsers, "broken", store.Document{"telegramChatId": "abc"}))
	return s
}

func TestTelegram_Notify(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	n := NewTelegram(sender, testUsers(t))

	require.NoError(t, n.Notify(ctx, "linked", "hello"))
	require.NoError(t, n.Notify(ctx, "unlinked", "skipped"))
	require.NoError(t, n.Notify(ctx, "missing", "skipped"))
	assert.Error(t, n.Notify(ctx, "broken", "x"))

	assert.Equal(t, []sent{{4242, "hello"}}, sender.sent)
}

func TestTelegram_SendErrorAndClose(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{err: errors.New("network down")}
	n := NewTelegram(sender, testUsers(t))

	assert.ErrorContains(t, n.Notify(ctx, "linked", "hello"), "network down")

	require.NoError(t, n.Close())
	assert.ErrorIs(t, n.Notify(ctx, "linked", "hello"), ErrClosed)
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	assert.NoError(t, n.Notify(context.Background(), "u", "x"))
	assert.NoError(t, n.Close())
}
