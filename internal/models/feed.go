package models

import "time"

// FeedPost is a rendered markdown article from the content directory
type FeedPost struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	HTML        string    `json:"html,omitempty"`
	SourcePath  string    `json:"-"`
}

// FeedEvent is pushed to feed subscribers over the websocket
type FeedEvent struct {
	Type  string    `json:"type"`
	Count int       `json:"count,omitempty"`
	At    time.Time `json:"at"`
}

// FeedSubscriber is one open feed websocket
type FeedSubscriber struct {
	ConnID    string
	UserID    string
	ClientIP  string
	WriteChan chan FeedEvent
	CreatedAt time.Time
}
