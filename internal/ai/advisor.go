package ai

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/amishk599/ajirawise/internal/catalog"
	"github.com/amishk599/ajirawise/internal/model"
)

// Ensure LLMAdvisor implements model.Advisor.
var _ model.Advisor = (*LLMAdvisor)(nil)

// maxAnswerRunes keeps answers within a single chat message.
const maxAnswerRunes = 1500

// reasoningBlock matches the <think> section some reasoning models prepend.
var reasoningBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// LLMAdvisor answers free-text career questions through an LLM. Every failure,
// including timeouts and empty answers, is reported as model.ErrUnavailable.
type LLMAdvisor struct {
	provider LLMProvider
	system   *template.Template
	user     *template.Template
	timeout  time.Duration
	logger   *slog.Logger
}

// NewLLMAdvisor creates an advisor bounded by timeout per question.
func NewLLMAdvisor(provider LLMProvider, timeout time.Duration, logger *slog.Logger) *LLMAdvisor {
	return &LLMAdvisor{
		provider: provider,
		system:   AdvisorSystemTemplate,
		user:     AdvisorUserTemplate,
		timeout:  timeout,
		logger:   logger,
	}
}

func (a *LLMAdvisor) Ask(ctx context.Context, q model.AdvisoryQuestion) (string, error) {
	if strings.TrimSpace(q.Text) == "" {
		return "", model.Unavailable("advisor", fmt.Errorf("empty question"))
	}

	var sys, usr bytes.Buffer
	if err := a.system.Execute(&sys, struct{ Categories []string }{catalog.Categories}); err != nil {
		return "", model.Unavailable("advisor render", err)
	}
	if err := a.user.Execute(&usr, struct {
		Question string
		Interest string
		Balance  int
	}{q.Text, q.Interest, q.Balance}); err != nil {
		return "", model.Unavailable("advisor render", err)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := a.provider.Complete(ctx, sys.String(), usr.String())
	if err != nil {
		a.logger.Warn("advisor call failed", "elapsed", time.Since(start).Round(time.Millisecond), "error", err)
		return "", model.Unavailable("advisor", err)
	}

	answer := cleanAnswer(raw)
	if answer == "" {
		return "", model.Unavailable("advisor", fmt.Errorf("empty answer"))
	}
	a.logger.Debug("advisor answered", "elapsed", time.Since(start).Round(time.Millisecond), "chars", len(answer))
	return answer, nil
}

// cleanAnswer drops reasoning blocks, trims and caps the answer length.
func cleanAnswer(raw string) string {
	s := strings.TrimSpace(reasoningBlock.ReplaceAllString(raw, ""))
	runes := []rune(s)
	if len(runes) > maxAnswerRunes {
		s = strings.TrimSpace(string(runes[:maxAnswerRunes])) + "..."
	}
	return s
}
