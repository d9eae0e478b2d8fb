package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amishk599/ajirawise/internal/catalog"
	"github.com/amishk599/ajirawise/internal/filter"
	"github.com/amishk599/ajirawise/internal/model"
)

// Ensure MultiSource implements model.JobSource.
var _ model.JobSource = (*MultiSource)(nil)

// MultiSource fans a category query out to several fetchers and merges the
// results into one ordered candidate list. It never fails: fetcher errors
// are logged and a total failure yields an empty list.
type MultiSource struct {
	fetchers  []model.JobFetcher
	locations []string
	max       int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewMultiSource merges fetchers in the given order. limit caps the merged
// list (0 means unlimited); timeout bounds the whole fan-out.
func NewMultiSource(fetchers []model.JobFetcher, locations []string, limit int, timeout time.Duration, logger *slog.Logger) *MultiSource {
	return &MultiSource{
		fetchers:  fetchers,
		locations: locations,
		max:       limit,
		timeout:   timeout,
		logger:    logger,
	}
}

// FetchCandidates returns deduplicated postings, whole-word title matches
// first, each group in fetcher order.
func (m *MultiSource) FetchCandidates(ctx context.Context, category string) []model.JobPosting {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	results := make([][]model.JobPosting, len(m.fetchers))
	var g errgroup.Group
	for i, f := range m.fetchers {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("source panicked", "source", f.Name(), "panic", fmt.Sprint(r))
				}
			}()
			jobs, err := f.FetchJobs(ctx, category)
			if err != nil {
				m.logger.Warn("source failed", "source", f.Name(), "category", category, "error", err)
				return nil
			}
			m.logger.Debug("source fetched", "source", f.Name(), "category", category, "count", len(jobs))
			results[i] = jobs
			return nil
		})
	}
	g.Wait()

	merged := m.merge(category, results)
	if len(merged) == 0 {
		m.logger.Warn("no candidates from any source", "category", category, "sources", len(m.fetchers))
	} else {
		m.logger.Info("candidates fetched",
			"category", category,
			"count", len(merged),
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	}
	return merged
}

func (m *MultiSource) merge(category string, results [][]model.JobPosting) []model.JobPosting {
	f := filter.NewCategoryFilter(category, false, m.locations)

	var (
		order  []string
		byKey  = make(map[string]model.JobPosting)
		strict []model.JobPosting
		loose  []model.JobPosting
	)
	for _, jobs := range results {
		for _, j := range jobs {
			if !f.Match(j) {
				continue
			}
			j.Category = category
			j = j.WithFingerprint()
			key := strings.ToLower(collapse(j.Title))
			existing, dup := byKey[key]
			if !dup {
				order = append(order, key)
				byKey[key] = j
				continue
			}
			// Keep the copy with the more complete employer name.
			if len(j.Company) > len(existing.Company) {
				byKey[key] = j
			}
		}
	}

	for _, key := range order {
		j := byKey[key]
		if catalog.Matches(j.Title, category, true) {
			strict = append(strict, j)
		} else {
			loose = append(loose, j)
		}
	}

	out := append(strict, loose...)
	if m.max > 0 && len(out) > m.max {
		out = out[:m.max]
	}
	return out
}
