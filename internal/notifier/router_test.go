package notifier

import (
	"context"
	"strings"
	"testing"
)

type recordingSender struct {
	name string
	sent []string
}

func (r *recordingSender) Send(_ context.Context, channelID, text string) error {
	r.sent = append(r.sent, channelID+"|"+text)
	return nil
}

func TestRouter_Dispatch(t *testing.T) {
	tg := &recordingSender{name: "telegram"}
	wa := &recordingSender{name: "whatsapp"}
	fb := &recordingSender{name: "log"}
	r := NewRouter(tg, wa, fb)
	ctx := context.Background()

	r.Send(ctx, "tg:42", "a")
	r.Send(ctx, "+254712345678", "b")
	r.Send(ctx, "console:amina", "c")

	if len(tg.sent) != 1 || tg.sent[0] != "tg:42|a" {
		t.Errorf("telegram got %v", tg.sent)
	}
	if len(wa.sent) != 1 || wa.sent[0] != "+254712345678|b" {
		t.Errorf("whatsapp got %v", wa.sent)
	}
	if len(fb.sent) != 1 || fb.sent[0] != "console:amina|c" {
		t.Errorf("fallback got %v", fb.sent)
	}
}

func TestRouter_MissingSenderUsesFallback(t *testing.T) {
	fb := &recordingSender{}
	r := NewRouter(nil, nil, fb)
	if err := r.Send(context.Background(), "tg:1", "x"); err != nil {
		t.Fatalf("Send() = %v", err)
	}
	if len(fb.sent) != 1 {
		t.Errorf("fallback got %v", fb.sent)
	}

	if err := NewRouter(nil, nil, nil).Send(context.Background(), "tg:1", "x"); err == nil {
		t.Error("expected error with no sender configured")
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"whatsapp:+254712345678", "+254712345678"},
		{"+254712345678", "+254712345678"},
		{"254712345678", "+254712345678"},
		{"0712345678", "+254712345678"},
		{"712345678", "+254712345678"},
		{"0712 345 678", "+254712345678"},
		{"+14155238886", "+14155238886"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizePhone(tt.in); got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSendTestMessage(t *testing.T) {
	s := &recordingSender{}
	if err := SendTestMessage(context.Background(), s, "tg:7"); err != nil {
		t.Fatalf("SendTestMessage() = %v", err)
	}
	if len(s.sent) != 1 || !strings.HasPrefix(s.sent[0], "tg:7|") {
		t.Errorf("sent = %v", s.sent)
	}
}

func TestLogSender(t *testing.T) {
	if err := NewLogSender(discardLogger()).Send(context.Background(), "tg:1", "hi"); err != nil {
		t.Errorf("Send() = %v, want nil", err)
	}
}

func TestSplitMessage(t *testing.T) {
	if got := splitMessage("short", 10); len(got) != 1 || got[0] != "short" {
		t.Errorf("splitMessage short = %v", got)
	}

	text := "aaaa\nbbbb\ncccc"
	got := splitMessage(text, 10)
	if len(got) != 2 || got[0] != "aaaa\nbbbb" || got[1] != "cccc" {
		t.Errorf("splitMessage = %q", got)
	}

	long := strings.Repeat("x", 25)
	got = splitMessage(long, 10)
	if len(got) != 3 || strings.Join(got, "") != long {
		t.Errorf("splitMessage without breaks = %q", got)
	}
}
