package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/amishk599/ajirawise/internal/catalog"
	"github.com/amishk599/ajirawise/internal/model"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// greenhouseJob represents a single job in the Greenhouse API response.
type greenhouseJob struct {
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	Location    greenhouseLocation `json:"location"`
	AbsoluteURL string             `json:"absolute_url"`
	UpdatedAt   string             `json:"updated_at"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

// greenhouseResponse is the top-level Greenhouse jobs API response.
type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// GreenhouseBoard is one employer's public Greenhouse board.
type GreenhouseBoard struct {
	Token   string
	Company string
}

// GreenhouseSource reads configured Greenhouse boards and keeps the postings
// whose titles match the requested category.
type GreenhouseSource struct {
	boards  []GreenhouseBoard
	client  *http.Client
	baseURL string
}

// NewGreenhouseSource creates a source over the given boards.
func NewGreenhouseSource(boards []GreenhouseBoard, client *http.Client) *GreenhouseSource {
	return &GreenhouseSource{boards: boards, client: client, baseURL: greenhouseBaseURL}
}

func (a *GreenhouseSource) Name() string { return "Greenhouse" }

// FetchJobs returns matches from every board that answered; it fails only
// when all boards failed.
func (a *GreenhouseSource) FetchJobs(ctx context.Context, category string) ([]model.JobPosting, error) {
	var (
		jobs []model.JobPosting
		errs []error
	)
	for _, b := range a.boards {
		board, err := a.fetchBoard(ctx, b, category)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		jobs = append(jobs, board...)
	}
	if len(errs) == len(a.boards) && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return jobs, nil
}

func (a *GreenhouseSource) fetchBoard(ctx context.Context, b GreenhouseBoard, category string) ([]model.JobPosting, error) {
	url := fmt.Sprintf("%s/%s/jobs", a.baseURL, b.Token)

	body, err := fetchPage(ctx, a.client, url)
	if err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", b.Token, err)
	}

	var ghResp greenhouseResponse
	if err := json.Unmarshal(body, &ghResp); err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", b.Token, err)
	}

	var jobs []model.JobPosting
	for _, gj := range ghResp.Jobs {
		title := extractText(gj.Title)
		if !catalog.Matches(title, category, false) {
			continue
		}
		fetched := time.Now().UTC()
		if gj.UpdatedAt != "" {
			if t, err := time.Parse(time.RFC3339, gj.UpdatedAt); err == nil {
				fetched = t.UTC()
			}
		}
		jobs = append(jobs, model.JobPosting{
			ID:        fmt.Sprintf("gh-%d", gj.ID),
			Title:     title,
			Company:   b.Company,
			Location:  gj.Location.Name,
			URL:       gj.AbsoluteURL,
			Source:    "Greenhouse",
			Category:  category,
			FetchedAt: fetched,
		})
	}
	return jobs, nil
}
