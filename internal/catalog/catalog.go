// Package catalog holds the fixed job-category catalog, the synonym table
// that maps free text onto it, and the per-category search terms used to
// query and match job boards.
package catalog

import (
	"regexp"
	"strings"
)

// Categories in display order. These exact strings are stored as a user's interest.
var Categories = []string{
	"Data Entry",
	"Sales & Marketing",
	"Delivery & Logistics",
	"Customer Service",
	"Finance & Accounting",
	"Admin & Office Work",
	"Teaching / Training",
	"Internships / Attachments",
	"Software Engineering",
}

// synonyms maps a normalized phrase to its canonical category. Lookups are
// exact; there is no fuzzy matching.
var synonyms = map[string]string{
	"data":       "Data Entry",
	"entry":      "Data Entry",
	"data input": "Data Entry",
	"typing":     "Data Entry",

	"sales":               "Sales & Marketing",
	"marketing":           "Sales & Marketing",
	"sales and marketing": "Sales & Marketing",

	"delivery":               "Delivery & Logistics",
	"logistics":              "Delivery & Logistics",
	"transport":              "Delivery & Logistics",
	"driver":                 "Delivery & Logistics",
	"delivery and logistics": "Delivery & Logistics",

	"customer":         "Customer Service",
	"service":          "Customer Service",
	"support":          "Customer Service",
	"customer care":    "Customer Service",
	"customer support": "Customer Service",

	"finance":                "Finance & Accounting",
	"accounting":             "Finance & Accounting",
	"accounts":               "Finance & Accounting",
	"finance and accounting": "Finance & Accounting",

	"admin":                 "Admin & Office Work",
	"office":                "Admin & Office Work",
	"office work":           "Admin & Office Work",
	"admin and office work": "Admin & Office Work",

	"teaching":              "Teaching / Training",
	"training":              "Teaching / Training",
	"tutor":                 "Teaching / Training",
	"teacher":               "Teaching / Training",
	"teaching and training": "Teaching / Training",

	"internship":  "Internships / Attachments",
	"internships": "Internships / Attachments",
	"attachment":  "Internships / Attachments",
	"attachments": "Internships / Attachments",
	"intern":      "Internships / Attachments",

	"software":           "Software Engineering",
	"engineering":        "Software Engineering",
	"programming":        "Software Engineering",
	"developer":          "Software Engineering",
	"software developer": "Software Engineering",
	"software engineer":  "Software Engineering",
	"tech":               "Software Engineering",
	"it":                 "Software Engineering",
}

var canonical = func() map[string]string {
	m := make(map[string]string, len(Categories))
	for _, c := range Categories {
		m[normalizeKey(c)] = c
	}
	return m
}()

// Normalize maps free text to a canonical category. It is case-insensitive
// and whitespace-normalized; ok is false when nothing matches.
func Normalize(text string) (category string, ok bool) {
	key := normalizeKey(text)
	if key == "" {
		return "", false
	}
	if c, found := canonical[key]; found {
		return c, true
	}
	c, found := synonyms[key]
	return c, found
}

// IsCategory reports whether s is one of the exact catalog strings.
func IsCategory(s string) bool {
	for _, c := range Categories {
		if c == s {
			return true
		}
	}
	return false
}

func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// searchTerms lists the title terms that identify a posting for a category.
// The first two terms are also used as board search queries.
var searchTerms = map[string][]string{
	"Data Entry": {
		"data entry", "data input", "data processing", "data clerk", "data operator",
		"typing", "keying", "data capture", "data analyst", "data assistant",
		"clerk", "administrative assistant", "office assistant", "records clerk",
		"database", "excel", "spreadsheet", "data management",
	},
	"Sales & Marketing": {
		"sales", "marketing", "business development", "sales rep", "sales representative",
		"account manager", "marketing manager", "sales executive", "marketing executive",
		"sales agent", "promoter", "brand ambassador", "digital marketing",
		"social media", "advertising", "market research", "sales consultant",
		"relationship manager", "channel sales",
	},
	"Delivery & Logistics": {
		"delivery", "logistics", "transport", "courier", "driver", "dispatch",
		"shipping", "warehouse", "supply chain", "distribution", "fleet",
		"cargo", "freight", "inventory", "procurement", "operations",
		"delivery driver", "truck driver", "logistics coordinator",
	},
	"Customer Service": {
		"customer service", "customer support", "call center", "help desk",
		"customer care", "client service", "support agent", "service representative",
		"customer success", "client relations", "support specialist",
		"call centre", "contact center", "customer experience", "service desk",
	},
	"Finance & Accounting": {
		"finance", "accounting", "bookkeeping", "accountant", "financial",
		"accounts", "audit", "tax", "payroll", "finance officer",
		"financial analyst", "accounts clerk", "bookkeeper", "treasurer",
		"budget", "financial planning", "credit", "banking", "investment",
	},
	"Admin & Office Work": {
		"admin", "administrative", "office", "secretary", "receptionist",
		"office manager", "executive assistant", "personal assistant",
		"administrative assistant", "office assistant", "clerk",
		"coordinator", "scheduler", "documentation", "filing",
	},
	"Teaching / Training": {
		"teacher", "teaching", "tutor", "instructor", "educator", "lecturer", "trainer",
		"training", "facilitator", "curriculum", "curriculum developer", "academic", "professor",
		"school", "kindergarten", "primary school", "high school", "education officer", "coach",
		"learning", "education", "training coordinator", "corporate trainer",
	},
	"Internships / Attachments": {
		"internship", "intern", "attachment", "industrial attachment", "trainee", "graduate trainee",
		"graduate program", "entry level", "junior", "apprentice", "fellowship", "student",
		"summer intern", "graduate", "fresh graduate", "entry-level", "beginner",
	},
	"Software Engineering": {
		"software", "software engineer", "software developer", "developer", "programmer",
		"full stack", "backend", "frontend", "front end", "mobile developer", "web developer",
		"python", "java", "javascript", "react", "node", "django", "flutter",
		"php", "laravel", "angular", "vue", "kotlin", "swift", "devops",
		"software architect", "technical lead", "coding", "programming",
	},
}

var strictPatterns = func() map[string][]*regexp.Regexp {
	m := make(map[string][]*regexp.Regexp, len(searchTerms))
	for cat, terms := range searchTerms {
		for _, term := range terms {
			m[cat] = append(m[cat], regexp.MustCompile(`\b`+regexp.QuoteMeta(term)+`\b`))
		}
	}
	return m
}()

// SearchTerms returns the title terms for a category, or the lower-cased
// category itself when it has no entry.
func SearchTerms(category string) []string {
	if terms, ok := searchTerms[category]; ok {
		return terms
	}
	return []string{strings.ToLower(category)}
}

// PrimaryTerms returns up to n leading search terms, used as board queries.
func PrimaryTerms(category string, n int) []string {
	terms := SearchTerms(category)
	if n > 0 && len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

// Matches reports whether title belongs to category. Strict matching requires
// a whole-word hit, relaxed matching accepts any substring hit.
func Matches(title, category string, strict bool) bool {
	lower := strings.ToLower(title)
	if strict {
		if patterns, ok := strictPatterns[category]; ok {
			for _, p := range patterns {
				if p.MatchString(lower) {
					return true
				}
			}
			return false
		}
	}
	for _, term := range SearchTerms(category) {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
