package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSendMessage_PostsPayload(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sendMessage" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", 2*time.Second)
	if err := c.SendMessage(context.Background(), 123, "Your order [o1](/orders?highlight=o1) shipped"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if got.ChatID != 123 {
		t.Fatalf("unexpected chat id: %d", got.ChatID)
	}
	if !strings.Contains(got.Text, "/orders?highlight=o1") {
		t.Fatalf("unexpected text: %q", got.Text)
	}
}

func TestSendMessage_TruncatesLongText(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"ok":true,"result":{}}`)
	}))
	defer srv.Close()

	long := strings.Repeat("é", maxMessageChars+50)
	if err := NewClient(srv.URL, time.Second).SendMessage(context.Background(), 1, long); err != nil {
		t.Fatal(err)
	}
	if n := len([]rune(got.Text)); n != maxMessageChars {
		t.Fatalf("expected %d runes, got %d", maxMessageChars, n)
	}
}

func TestSendMessage_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"description":"chat not found"}`)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).SendMessage(context.Background(), 1, "x")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected rejection error, got %v", err)
	}
}

func TestAPIBase(t *testing.T) {
	if got := APIBase("abc"); got != "https://api.telegram.org/botabc" {
		t.Fatalf("unexpected base: %s", got)
	}
}
