package adapter

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amishk599/ajirawise/internal/model"
)

//go:embed fixtures/jobs.yaml
var defaultFixtures []byte

type fixtureFile struct {
	Jobs []fixtureJob `yaml:"jobs"`
}

type fixtureJob struct {
	Category string `yaml:"category"`
	Title    string `yaml:"title"`
	Company  string `yaml:"company"`
	Location string `yaml:"location"`
	URL      string `yaml:"url"`
}

// FixtureSource serves deterministic postings from a YAML file. It stands in
// for the live boards in development, demos and tests.
type FixtureSource struct {
	byCategory map[string][]model.JobPosting
}

// NewFixtureSource loads postings from path, or the built-in set when path is empty.
func NewFixtureSource(path string) (*FixtureSource, error) {
	data := defaultFixtures
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading fixture file: %w", err)
		}
	}

	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixture file: %w", err)
	}

	s := &FixtureSource{byCategory: make(map[string][]model.JobPosting)}
	for i, j := range f.Jobs {
		if j.Category == "" || j.Title == "" {
			return nil, fmt.Errorf("fixture job %d: category and title are required", i)
		}
		s.byCategory[j.Category] = append(s.byCategory[j.Category], model.JobPosting{
			Title:    j.Title,
			Company:  j.Company,
			Location: j.Location,
			URL:      j.URL,
			Source:   "Fixture",
			Category: j.Category,
		}.WithFingerprint())
	}
	return s, nil
}

func (s *FixtureSource) Name() string { return "Fixture" }

// FetchJobs returns the category's postings in file order. It never fails.
func (s *FixtureSource) FetchJobs(_ context.Context, category string) ([]model.JobPosting, error) {
	src := s.byCategory[category]
	now := time.Now().UTC()
	jobs := make([]model.JobPosting, len(src))
	for i, j := range src {
		j.FetchedAt = now
		jobs[i] = j
	}
	return jobs, nil
}
