package delivery

import (
	"context"
	"strings"
	"time"

	"github.com/amishk599/ajirawise/internal/model"
)

// AlertWriter personalizes a job alert. It returns an error when no text is
// available; the protocol then sends the standard FormatJob message.
type AlertWriter interface {
	WriteAlert(ctx context.Context, job model.JobPosting, interest string, remaining int) (string, error)
}

// WithWriter returns a copy of the protocol that personalizes alerts through
// w, bounding each call by timeout (zero means no extra bound).
func (p *Protocol) WithWriter(w AlertWriter, timeout time.Duration) *Protocol {
	cp := *p
	cp.writer = w
	cp.writerTimeout = timeout
	return &cp
}

// render returns the alert text for one claimed job. Writer failures and
// empty answers fall back to the standard format.
func (p *Protocol) render(ctx context.Context, job model.JobPosting, interest string, remaining int, trigger Trigger) string {
	standard := FormatJob(job, interest, remaining, trigger)
	if p.writer == nil {
		return standard
	}

	if p.writerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.writerTimeout)
		defer cancel()
	}
	text, err := p.writer.WriteAlert(ctx, job, interest, remaining)
	if err != nil || strings.TrimSpace(text) == "" {
		p.logger.Warn("alert personalization failed, using standard format", "job_id", job.ID, "error", err)
		return standard
	}
	return text
}
