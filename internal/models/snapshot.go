package models

import (
	"errors"
	"time"
)

// Snapshot is a persisted point-in-time observation of a market.
// Snapshots are immutable once written; they are identified by
// (Platform, MarketID, Timestamp) and duplicates of that key are permitted.
type Snapshot struct {
	ID          string    `json:"id"`
	Observation           // embedded connector fields
	Timestamp   time.Time `json:"timestamp"`
}

// MarketKey identifies a tracked market across snapshots.
type MarketKey struct {
	Platform string `json:"platform"`
	MarketID string `json:"market_id"`
}

// Validate checks that all snapshot fields are valid.
func (s *Snapshot) Validate() error {
	if s.ID == "" {
		return errors.New("snapshot ID must not be empty")
	}
	if s.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	if s.Timestamp.After(time.Now().Add(time.Minute)) {
		return errors.New("timestamp must not be in the future")
	}
	return s.Observation.Validate()
}
