package adapter

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// extractText converts an HTML or HTML-encoded string to plain text.
// It unescapes entities first (board APIs double-encode), strips all tags,
// then collapses whitespace.
func extractText(content string) string {
	unescaped := html.UnescapeString(content)
	plain := htmlTagRegex.ReplaceAllString(unescaped, "")
	return collapse(plain)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// resolveURL makes href absolute against base. Unparseable hrefs yield base.
func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return base
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return base
	}
	return b.ResolveReference(ref).String()
}

// splitTitleCompany splits listing text such as
// "Accountant at Acme Ltd - Nairobi" into its parts.
func splitTitleCompany(text string) (title, company, location string) {
	title = collapse(text)
	if i := strings.LastIndex(title, " - "); i > 0 {
		location = strings.TrimSpace(title[i+3:])
		title = strings.TrimSpace(title[:i])
	}
	if i := strings.LastIndex(title, " at "); i > 0 {
		company = strings.TrimSpace(title[i+4:])
		title = strings.TrimSpace(title[:i])
	}
	return title, company, location
}
