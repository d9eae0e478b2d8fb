package ai

import (
	"context"

	"github.com/amishk599/ajirawise/internal/model"
)

// NopAdvisor is used when no LLM is configured. Every question gets
// model.ErrUnavailable, so callers fall back to their canned reply.
type NopAdvisor struct{}

// NewNopAdvisor returns a NopAdvisor.
func NewNopAdvisor() *NopAdvisor {
	return &NopAdvisor{}
}

func (n *NopAdvisor) Ask(_ context.Context, _ model.AdvisoryQuestion) (string, error) {
	return "", model.Unavailable("advisor", nil)
}
