package ai

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amishk599/ajirawise/internal/model"
)

// maxAlertRunes keeps the rewritten body well inside one WhatsApp message.
const maxAlertRunes = 800

// LLMAlertWriter rewrites job alerts into a personalized message. The link
// and remaining balance are always appended by code so the model cannot
// drop or alter them.
type LLMAlertWriter struct {
	provider LLMProvider
	logger   *slog.Logger
}

// NewLLMAlertWriter creates a writer. Callers bound each call with a context deadline.
func NewLLMAlertWriter(provider LLMProvider, logger *slog.Logger) *LLMAlertWriter {
	return &LLMAlertWriter{provider: provider, logger: logger}
}

// WriteAlert returns the personalized message for job. Any provider failure
// or empty answer is returned as model.ErrUnavailable.
func (w *LLMAlertWriter) WriteAlert(ctx context.Context, job model.JobPosting, interest string, remaining int) (string, error) {
	var usr bytes.Buffer
	if err := AlertUserTemplate.Execute(&usr, struct {
		Title, Company, Location, Source, Interest string
	}{
		Title:    job.Title,
		Company:  fallback(job.Company, "Not specified"),
		Location: fallback(job.Location, "Kenya"),
		Source:   fallback(job.Source, "Job Board"),
		Interest: interest,
	}); err != nil {
		return "", model.Unavailable("alert render", err)
	}

	raw, err := w.provider.Complete(ctx, AlertSystemPrompt, usr.String())
	if err != nil {
		return "", model.Unavailable("alert writer", err)
	}

	body := cleanAnswer(raw)
	if body == "" {
		return "", model.Unavailable("alert writer", fmt.Errorf("empty answer"))
	}
	if runes := []rune(body); len(runes) > maxAlertRunes {
		body = strings.TrimSpace(string(runes[:maxAlertRunes])) + "..."
	}
	w.logger.Debug("alert personalized", "job_id", job.ID, "chars", len(body))

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n\n")
	if job.URL != "" {
		fmt.Fprintf(&b, "🔗 %s\n", job.URL)
	}
	fmt.Fprintf(&b, "💰 Credit used: 1 | 💳 Remaining: %d", remaining)
	return b.String(), nil
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
