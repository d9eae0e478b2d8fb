package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/amishk599/ajirawise/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTelegram(srv *httptest.Server) *TelegramSender {
	s := NewTelegramSender("123:abc", srv.Client(), discardLogger())
	s.baseURL = srv.URL
	return s
}

func TestTelegramSender_Send(t *testing.T) {
	var (
		path string
		msg  telegramMessage
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&msg)
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	if err := newTestTelegram(srv).Send(context.Background(), "tg:987654", "hello"); err != nil {
		t.Fatalf("Send() = %v", err)
	}
	if path != "/bot123:abc/sendMessage" {
		t.Errorf("path = %q", path)
	}
	if msg.ChatID != "987654" || msg.Text != "hello" || !msg.DisableWebPagePreview {
		t.Errorf("message = %+v", msg)
	}
}

func TestTelegramSender_RejectsNonTelegramChannel(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	err := newTestTelegram(srv).Send(context.Background(), "+254712345678", "hello")
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if c := calls.Load(); c != 0 {
		t.Errorf("expected 0 HTTP calls, got %d", c)
	}
}

func TestTelegramSender_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"ok":false,"description":"Too Many Requests","parameters":{"retry_after":1}}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	if err := newTestTelegram(srv).Send(context.Background(), "tg:1", "hi"); err != nil {
		t.Fatalf("expected nil after retry, got %v", err)
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("expected 2 HTTP calls (initial + retry), got %d", c)
	}
}

func TestTelegramSender_BadRequestNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	err := newTestTelegram(srv).Send(context.Background(), "tg:1", "hi")
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected HTTPError 400, got %v", err)
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("error lacks description: %v", err)
	}
	if c := calls.Load(); c != 1 {
		t.Errorf("expected 1 HTTP call, got %d", c)
	}
}

func TestTelegramSender_SplitsLongMessages(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	text := strings.Repeat("line of text\n", 700)
	if err := newTestTelegram(srv).Send(context.Background(), "tg:1", text); err != nil {
		t.Fatalf("Send() = %v", err)
	}
	if c := calls.Load(); c != 3 {
		t.Errorf("expected 3 HTTP calls, got %d", c)
	}
}

func TestTelegramChannelID(t *testing.T) {
	id := TelegramChannelID(-100200)
	if id != "tg:-100200" {
		t.Errorf("TelegramChannelID = %q", id)
	}
	chat, ok := TelegramChatID(id)
	if !ok || chat != "-100200" {
		t.Errorf("TelegramChatID(%q) = %q, %v", id, chat, ok)
	}
	if _, ok := TelegramChatID("tg:"); ok {
		t.Error("empty chat id accepted")
	}
}
