package storage

import (
	"time"

	"github.com/hperssn/reframe/internal/domain"
)

// EntryRecord is a row of the thought_logs table.
type EntryRecord struct {
	ID              string
	UserID          int64
	CreatedAt       time.Time
	OriginalThought string
	Distortions     []string
	ReframedThought string
}

// FromThoughtEntry converts a domain.ThoughtEntry to an EntryRecord
func FromThoughtEntry(e domain.ThoughtEntry) *EntryRecord {
	distortions := make([]string, len(e.Distortions))
	copy(distortions, e.Distortions)

	return &EntryRecord{
		ID:              e.ID,
		UserID:          e.UserID,
		CreatedAt:       e.CreatedAt.UTC(),
		OriginalThought: e.OriginalThought,
		Distortions:     distortions,
		ReframedThought: e.ReframedThought,
	}
}

func (r EntryRecord) ThoughtEntry() domain.ThoughtEntry {
	distortions := r.Distortions
	if distortions == nil {
		distortions = []string{}
	}

	return domain.ThoughtEntry{
		ID:              r.ID,
		UserID:          r.UserID,
		CreatedAt:       r.CreatedAt,
		OriginalThought: r.OriginalThought,
		Distortions:     distortions,
		ReframedThought: r.ReframedThought,
	}
}
