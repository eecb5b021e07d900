package model

import "time"

// Candidate is a domain surfaced by sourcing, before any relevance check.
type Candidate struct {
	Domain      string
	Snippet     string
	Link        string
	SourceQuery string
}

// Company is a persisted employer. Domain is unique across the store.
type Company struct {
	ID            string
	Name          string
	Domain        string
	Description   string
	FundingStage  string
	EmployeeCount int
	Headquarters  string
	CreatedAt     time.Time
}

// ClassifiedCompany is one element of the classifier's output.
type ClassifiedCompany struct {
	CompanyID string
	Domain    string
}

// Posting is the normalized shape every board extractor produces.
type Posting struct {
	Title    string
	Location string
	URL      string
}

// JobPosting is a persisted posting. URL is unique across the store and
// Score stays nil until the scorer sets it once.
type JobPosting struct {
	ID          string
	CompanyID   string
	Title       string
	Location    string
	PostingDate time.Time
	Description string
	URL         string
	Remote      bool
	Score       *float64
	CreatedAt   time.Time
}

// ScoredPosting is a posting joined with its owning company, as read back
// for scoring and digests.
type ScoredPosting struct {
	Posting JobPosting
	Company Company
}
