package adapter

import (
	"context"
	"net/http"

	"github.com/amishk599/ajirawise/internal/model"
)

const jobsKenyaBaseURL = "https://www.jobskenya.info/"

// jobIndicators are words that separate posting links from other links on
// the Jobs Kenya front page.
var jobIndicators = []string{
	"position", "job", "vacancy", "opportunity", "wanted", "required", "officer",
	"manager", "assistant", "coordinator", "specialist", "representative", "agent",
	"analyst", "developer", "engineer", "executive", "clerk", "intern", "teacher",
	"driver", "accountant",
}

// JobsKenyaSource scrapes the Jobs Kenya front page, which lists recent
// postings without a search endpoint.
type JobsKenyaSource struct {
	client  *http.Client
	baseURL string
	max     int
}

func NewJobsKenyaSource(client *http.Client, limit int) *JobsKenyaSource {
	return &JobsKenyaSource{client: client, baseURL: jobsKenyaBaseURL, max: limit}
}

func (a *JobsKenyaSource) Name() string { return "Jobs Kenya" }

func (a *JobsKenyaSource) FetchJobs(ctx context.Context, category string) ([]model.JobPosting, error) {
	l := listing{
		source:          a.Name(),
		baseURL:         a.baseURL,
		selector:        "h2 a[href], h3 a[href], h4 a[href], a[href]",
		maxElements:     200,
		defaultCompany:  "Jobs Kenya Employer",
		defaultLocation: "Kenya",
		indicators:      jobIndicators,
	}
	get := func(ctx context.Context, u string) ([]byte, error) { return fetchPage(ctx, a.client, u) }
	return l.scrape(ctx, get, []string{a.baseURL}, category, a.max)
}
