package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/amishk599/ajirawise/internal/catalog"
	"github.com/amishk599/ajirawise/internal/model"
)

const brighterMondayBaseURL = "https://www.brightermonday.co.ke"

// BrighterMondaySource scrapes the BrighterMonday Kenya search results.
type BrighterMondaySource struct {
	client  *http.Client
	baseURL string
	pages   int
	max     int
}

// NewBrighterMondaySource searches the first two category terms across pages
// result pages each, keeping at most limit postings.
func NewBrighterMondaySource(client *http.Client, pages, limit int) *BrighterMondaySource {
	if pages < 1 {
		pages = 1
	}
	return &BrighterMondaySource{client: client, baseURL: brighterMondayBaseURL, pages: pages, max: limit}
}

func (a *BrighterMondaySource) Name() string { return "BrighterMonday" }

func (a *BrighterMondaySource) FetchJobs(ctx context.Context, category string) ([]model.JobPosting, error) {
	var urls []string
	for _, term := range catalog.PrimaryTerms(category, 2) {
		for page := 1; page <= a.pages; page++ {
			urls = append(urls, fmt.Sprintf("%s/jobs?q=%s&page=%d", a.baseURL, url.QueryEscape(term), page))
		}
	}

	l := listing{
		source:          a.Name(),
		baseURL:         a.baseURL,
		selector:        "div[class*='job'], article[class*='job'], div[class*='listing'], a[href*='/listings/'], a[href*='/job/']",
		maxElements:     50,
		defaultCompany:  "BrighterMonday Employer",
		defaultLocation: "Kenya",
	}
	get := func(ctx context.Context, u string) ([]byte, error) { return fetchPage(ctx, a.client, u) }
	return l.scrape(ctx, get, urls, category, a.max)
}
