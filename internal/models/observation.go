// Package models defines the core domain entities for the scanner.
// These models represent market observations, persisted snapshots, and derived
// score breakdowns. Observations and snapshots include built-in validation to
// keep bad upstream data out of the store.
//
// Terminology:
//   - Observation: one connector reading for one market, produced each poll.
//   - Snapshot: an Observation plus a timestamp, immutable once stored.
//   - Flow: change in cumulative traded volume between two consecutive
//     observations of the same market, never negative.
//   - Depth: resting interest near the market's current price.
package models

import "errors"

// Observation is the connector output record for a single market.
// Required fields are Platform, MarketID, Title, P, Flow, and Depth; the
// remaining pointer fields are optional and carried through to persistence
// when the upstream API provides them.
type Observation struct {
	Platform string `json:"platform"`
	MarketID string `json:"market_id"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`

	P     float64 `json:"p"`     // Implied probability in (0, 1)
	Flow  float64 `json:"flow"`  // Volume delta since previous observation
	Depth float64 `json:"depth"` // Resting interest within the price band

	Bid          *float64 `json:"bid,omitempty"`
	Ask          *float64 `json:"ask,omitempty"`
	Mid          *float64 `json:"mid,omitempty"`
	Volume24h    *float64 `json:"volume_24h,omitempty"`
	OpenInterest *float64 `json:"open_interest,omitempty"`
}

// Validate checks that all required observation fields are valid.
func (o *Observation) Validate() error {
	if o.Platform == "" {
		return errors.New("platform must not be empty")
	}
	if o.MarketID == "" {
		return errors.New("market ID must not be empty")
	}
	if o.Title == "" {
		return errors.New("title must not be empty")
	}
	if o.P <= 0.0 || o.P >= 1.0 {
		return errors.New("probability must be strictly between 0.0 and 1.0")
	}
	if o.Flow < 0 {
		return errors.New("flow must not be negative")
	}
	if o.Depth < 0 {
		return errors.New("depth must not be negative")
	}
	return nil
}
