package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/ajirawise/internal/catalog"
	"github.com/amishk599/ajirawise/internal/filter"
	"github.com/amishk599/ajirawise/internal/model"
)

// listing describes how postings are laid out on one board's pages.
type listing struct {
	source          string
	baseURL         string
	selector        string // candidate elements, cards or anchors
	maxElements     int    // elements examined per page
	defaultCompany  string
	defaultLocation string
	indicators      []string // when set, a title must contain one of them
	splitTitle      bool     // titles read "Title at Company - Location"
}

// pageGetter returns the HTML of a page.
type pageGetter func(ctx context.Context, url string) ([]byte, error)

// parse extracts postings matching category from one page. seen holds
// lower-cased titles already taken from earlier pages of the same board.
func (l listing) parse(body []byte, category string, seen map[string]bool) ([]model.JobPosting, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing %s page: %w", l.source, err)
	}

	now := time.Now().UTC()
	var jobs []model.JobPosting
	doc.Find(l.selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if l.maxElements > 0 && i >= l.maxElements {
			return false
		}

		title := titleOf(s)
		company, location := "", ""
		if l.splitTitle {
			title, company, location = splitTitleCompany(title)
		}
		if len(title) < filter.MinTitleLength {
			return true
		}
		key := strings.ToLower(title)
		if seen[key] || filter.IsNavigation(title) {
			return true
		}
		if len(l.indicators) > 0 && !containsWord(key, l.indicators) {
			return true
		}
		if !catalog.Matches(title, category, false) {
			return true
		}
		seen[key] = true

		if company == "" {
			company = textOfClass(s, "company")
		}
		if company == "" {
			company = l.defaultCompany
		}
		if location == "" {
			location = textOfClass(s, "location", "city", "place")
		}
		if location == "" {
			location = l.defaultLocation
		}

		jobs = append(jobs, model.JobPosting{
			Title:     title,
			Company:   company,
			Location:  location,
			URL:       resolveURL(l.baseURL, linkOf(s)),
			Source:    l.source,
			Category:  category,
			FetchedAt: now,
		}.WithFingerprint())
		return true
	})
	return jobs, nil
}

// scrape fetches every url in order and collects up to limit postings. An error
// is returned only when no page could be fetched at all.
func (l listing) scrape(ctx context.Context, get pageGetter, urls []string, category string, limit int) ([]model.JobPosting, error) {
	seen := make(map[string]bool)
	var (
		jobs   []model.JobPosting
		errs   []error
		loaded int
	)
	for _, u := range urls {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		body, err := get(ctx, u)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", l.source, u, err))
			continue
		}
		loaded++
		page, err := l.parse(body, category, seen)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		jobs = append(jobs, page...)
		if limit > 0 && len(jobs) >= limit {
			return jobs[:limit], nil
		}
	}
	if loaded == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return jobs, nil
}

// titleOf reads the title text of a card, heading or anchor.
func titleOf(s *goquery.Selection) string {
	switch goquery.NodeName(s) {
	case "a", "h1", "h2", "h3", "h4":
		return collapse(s.Text())
	}
	if t := s.Find("h1, h2, h3, h4, [class*='title']").First(); t.Length() > 0 {
		return collapse(t.Text())
	}
	return collapse(s.Find("a").First().Text())
}

// linkOf returns the href of the element, a child anchor or an enclosing anchor.
func linkOf(s *goquery.Selection) string {
	if href, ok := s.Attr("href"); ok {
		return href
	}
	if href, ok := s.Find("a[href]").First().Attr("href"); ok {
		return href
	}
	href, _ := s.Closest("a[href]").Attr("href")
	return href
}

// textOfClass returns the text of the first descendant whose class contains
// one of the given fragments. Anchors and headings also search their parent,
// since boards put the employer next to the title link.
func textOfClass(s *goquery.Selection, fragments ...string) string {
	sel := make([]string, len(fragments))
	for i, f := range fragments {
		sel[i] = "[class*='" + f + "']"
	}
	query := strings.Join(sel, ", ")

	scopes := []*goquery.Selection{s}
	switch goquery.NodeName(s) {
	case "a", "h1", "h2", "h3", "h4":
		scopes = append(scopes, s.Parent())
	}
	for _, scope := range scopes {
		if t := collapse(scope.Find(query).First().Text()); len(t) > 2 {
			return t
		}
	}
	return ""
}

func containsWord(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
