package models

import "time"

// Tag is a shared free-text label attached to opportunities and profiles
type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
