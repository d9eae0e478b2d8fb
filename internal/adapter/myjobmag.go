package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/amishk599/ajirawise/internal/catalog"
	"github.com/amishk599/ajirawise/internal/model"
)

const myJobMagBaseURL = "https://www.myjobmag.co.ke"

// Renderer returns the HTML of a page after client-side scripts ran.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// MyJobMagSource scrapes MyJobMag Kenya. Its listings are rendered by
// JavaScript, so a Renderer is used when configured and plain HTTP otherwise.
type MyJobMagSource struct {
	client   *http.Client
	renderer Renderer
	baseURL  string
	max      int
}

// NewMyJobMagSource creates the source; renderer may be nil.
func NewMyJobMagSource(client *http.Client, renderer Renderer, limit int) *MyJobMagSource {
	return &MyJobMagSource{client: client, renderer: renderer, baseURL: myJobMagBaseURL, max: limit}
}

func (a *MyJobMagSource) Name() string { return "MyJobMag" }

func (a *MyJobMagSource) FetchJobs(ctx context.Context, category string) ([]model.JobPosting, error) {
	var urls []string
	for _, term := range catalog.PrimaryTerms(category, 2) {
		urls = append(urls, fmt.Sprintf("%s/jobs?q=%s", a.baseURL, url.QueryEscape(term)))
	}
	urls = append(urls, a.baseURL+"/jobs")

	l := listing{
		source:          a.Name(),
		baseURL:         a.baseURL,
		selector:        "h2 a[href], h3 a[href], .job-title, [class*='job-info'] a[href], a[href*='/job/']",
		maxElements:     30,
		defaultCompany:  "MyJobMag Employer",
		defaultLocation: "Kenya",
		splitTitle:      true,
	}
	return l.scrape(ctx, a.get, urls, category, a.max)
}

func (a *MyJobMagSource) get(ctx context.Context, u string) ([]byte, error) {
	if a.renderer == nil {
		return fetchPage(ctx, a.client, u)
	}
	html, err := a.renderer.Render(ctx, u)
	if err != nil {
		return nil, err
	}
	return []byte(html), nil
}
