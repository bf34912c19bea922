package models

import "time"

// OnboardingProfile holds what a user told us during onboarding
type OnboardingProfile struct {
	UserID         string    `json:"user_id"`
	Headline       string    `json:"headline"`
	School         string    `json:"school"`
	GraduationYear int       `json:"graduation_year,omitempty"`
	Interests      []Tag     `json:"interests"`
	Completed      bool      `json:"completed"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UpdateOnboardingRequest is the request body for PUT /api/onboarding
type UpdateOnboardingRequest struct {
	Headline       *string  `json:"headline,omitempty"`
	School         *string  `json:"school,omitempty"`
	GraduationYear *int     `json:"graduation_year,omitempty"`
	Interests      []string `json:"interests,omitempty"`
	Completed      *bool    `json:"completed,omitempty"`
}
