package models

import "time"

// ScoreBreakdown holds the factors of the composite anomaly score for one
// market, recomputed from stored history on every ranking query.
type ScoreBreakdown struct {
	ZFlow      float64 `json:"z_flow"`      // Std-dev distance of current flow from its rolling mean
	DepthRatio float64 `json:"depth_ratio"` // Flow relative to available depth
	Entropy    float64 `json:"entropy"`     // Closeness of p to a coin-flip, in nats
	Score      float64 `json:"score"`       // softplus(z) * ln(1+max(r,0)) * H
}

// RankedMarket is one row of the ranking query output: the market's latest
// snapshot joined with its score breakdown.
type RankedMarket struct {
	Platform  string    `json:"platform"`
	MarketID  string    `json:"market_id"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"ts"`

	P     float64 `json:"p"`
	Flow  float64 `json:"flow"`
	Depth float64 `json:"depth"`

	ZFlow      float64 `json:"z_flow"`
	DepthRatio float64 `json:"depth_ratio"`
	Entropy    float64 `json:"entropy"`
	Score      float64 `json:"score"`

	Bid          *float64 `json:"bid,omitempty"`
	Ask          *float64 `json:"ask,omitempty"`
	Mid          *float64 `json:"mid,omitempty"`
	Volume24h    *float64 `json:"volume_24h,omitempty"`
	OpenInterest *float64 `json:"open_interest,omitempty"`
}
