package domain

import "time"

// ThoughtEntry is one completed exercise as kept in the thought log.
type ThoughtEntry struct {
	ID              string    `json:"id"`
	UserID          int64     `json:"user_id"`
	CreatedAt       time.Time `json:"created_at"`
	OriginalThought string    `json:"original_thought"`
	Distortions     []string  `json:"distortions"`
	ReframedThought string    `json:"reframed_thought"`
}
