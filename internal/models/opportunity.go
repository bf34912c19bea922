package models

import "time"

// Opportunity kinds
const (
	KindInternship  = "internship"
	KindFellowship  = "fellowship"
	KindJob         = "job"
	KindScholarship = "scholarship"
	KindCompetition = "competition"
)

// Opportunity statuses
const (
	OpportunityOpen   = "open"
	OpportunityClosed = "closed"
)

// ValidKinds lists the accepted opportunity kinds
var ValidKinds = []string{KindInternship, KindFellowship, KindJob, KindScholarship, KindCompetition}

// IsValidKind reports whether kind is one of ValidKinds
func IsValidKind(kind string) bool {
	for _, k := range ValidKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Opportunity is a listing users can discover and bookmark
type Opportunity struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Organization string     `json:"organization"`
	Description  string     `json:"description"`
	Location     string     `json:"location"`
	Remote       bool       `json:"remote"`
	Kind         string     `json:"kind"`
	ApplyURL     string     `json:"apply_url"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	Status       string     `json:"status"`
	Tags         []Tag      `json:"tags"`
	CreatedBy    string     `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// OpportunityInput is the admin request body for create/update
type OpportunityInput struct {
	Title        string     `json:"title" yaml:"title"`
	Organization string     `json:"organization" yaml:"organization"`
	Description  string     `json:"description" yaml:"description"`
	Location     string     `json:"location" yaml:"location"`
	Remote       bool       `json:"remote" yaml:"remote"`
	Kind         string     `json:"kind" yaml:"kind"`
	ApplyURL     string     `json:"apply_url" yaml:"apply_url"`
	Deadline     *time.Time `json:"deadline,omitempty" yaml:"deadline"`
	Status       string     `json:"status,omitempty" yaml:"status"`
	Tags         []string   `json:"tags" yaml:"tags"`
}

// OpportunityFilter narrows the public listing
type OpportunityFilter struct {
	Tag    string
	Kind   string
	Query  string
	Status string
	Limit  int
	Offset int
}

// Bookmark links a user to a saved opportunity
type Bookmark struct {
	UserID        string       `json:"user_id"`
	OpportunityID string       `json:"opportunity_id"`
	CreatedAt     time.Time    `json:"created_at"`
	Opportunity   *Opportunity `json:"opportunity,omitempty"`
}
