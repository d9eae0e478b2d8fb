package filter

import (
	"strings"
	"unicode"

	"github.com/amishk599/ajirawise/internal/catalog"
	"github.com/amishk599/ajirawise/internal/model"
)

// Ensure CategoryFilter implements model.JobFilter.
var _ model.JobFilter = (*CategoryFilter)(nil)

// MinTitleLength is the shortest title accepted as a real posting.
const MinTitleLength = 10

// spamWords mark low-quality postings. Single words match whole words only.
var spamWords = []string{"spam", "scam", "fake", "test", "earn money fast", "work from home easy"}

// navWords mark scraped page chrome (menus, footers) rather than postings.
var navWords = []string{
	"search", "filter", "browse", "categories", "about us", "contact us",
	"login", "log in", "register", "sign up", "newsletter", "privacy", "terms",
}

// CategoryFilter accepts postings whose title matches the category's search
// terms, passes the quality checks, and whose location contains one of the
// location keywords. Empty location lists pass all.
type CategoryFilter struct {
	category  string
	strict    bool
	locations []string
}

// NewCategoryFilter returns a filter for one catalog category.
func NewCategoryFilter(category string, strict bool, locations []string) *CategoryFilter {
	return &CategoryFilter{
		category:  category,
		strict:    strict,
		locations: locations,
	}
}

// Match returns true if the job belongs to the category and looks like a real posting.
func (f *CategoryFilter) Match(job model.JobPosting) bool {
	if !Quality(job.Title) {
		return false
	}
	if !catalog.Matches(job.Title, f.category, f.strict) {
		return false
	}

	if len(f.locations) > 0 {
		locationLower := strings.ToLower(job.Location)
		matched := false
		for _, loc := range f.locations {
			if strings.Contains(locationLower, strings.ToLower(loc)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}

// Quality rejects short titles, spam and navigation text.
func Quality(title string) bool {
	title = strings.Join(strings.Fields(title), " ")
	if len(title) < MinTitleLength {
		return false
	}
	return !containsAny(title, spamWords) && !IsNavigation(title)
}

// IsNavigation reports whether text looks like site navigation rather than a job title.
func IsNavigation(text string) bool {
	return containsAny(text, navWords)
}

// containsAny matches single words against whole words of text and
// multi-word phrases as substrings.
func containsAny(text string, words []string) bool {
	lower := strings.ToLower(text)
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens[tok] = true
	}
	for _, w := range words {
		if strings.Contains(w, " ") {
			if strings.Contains(lower, w) {
				return true
			}
			continue
		}
		if tokens[w] {
			return true
		}
	}
	return false
}
