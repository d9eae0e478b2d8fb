package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// JobPosting is a single listing scraped from any job board.
type JobPosting struct {
	ID        string    // stable fingerprint, see Fingerprint
	Title     string    // job title
	Company   string    // employer name
	Location  string    // location string
	URL       string    // apply / detail link
	Source    string    // board name
	Category  string    // catalog category it was matched under
	FetchedAt time.Time // our clock
}

// Fingerprint derives the stable id used by the sent-job ledger.
// The same posting scraped twice yields the same id.
func Fingerprint(source, title, company, url string) string {
	key := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(source)),
		strings.ToLower(strings.Join(strings.Fields(title), " ")),
		strings.ToLower(strings.TrimSpace(company)),
		strings.TrimSpace(url),
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}

// WithFingerprint returns the posting with ID filled in when empty.
func (j JobPosting) WithFingerprint() JobPosting {
	if j.ID == "" {
		j.ID = Fingerprint(j.Source, j.Title, j.Company, j.URL)
	}
	return j
}

// SentJobRecord is one row of the append-only delivery ledger.
type SentJobRecord struct {
	ChannelID string
	JobID     string
	SentAt    time.Time
}

// JobSource returns ordered candidate postings for a catalog category.
// Implementations used by the delivery protocol never fail: a total failure
// yields an empty slice.
type JobSource interface {
	FetchCandidates(ctx context.Context, category string) []JobPosting
}

// JobFetcher is a single board that can fail. Decorators (retry, rate limit)
// wrap fetchers; MultiSource turns a set of fetchers into a JobSource.
type JobFetcher interface {
	Name() string
	FetchJobs(ctx context.Context, category string) ([]JobPosting, error)
}

// Sender delivers a text message to a channel id.
type Sender interface {
	Send(ctx context.Context, channelID, text string) error
}

// JobFilter decides whether a posting is acceptable for a category.
type JobFilter interface {
	Match(job JobPosting) bool
}
