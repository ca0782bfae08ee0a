// Package ranker turns stored snapshot history into a ranked anomaly list.
//
// Ranking is computed on demand and never cached: every query walks the
// distinct markets, rebuilds each market's rolling flow baseline from its
// stored history, scores the latest snapshot, and sorts the survivors. A
// separate publish filter applies the stricter human-facing thresholds.
package ranker

import (
	"fmt"
	"sort"

	"github.com/oddsflow/scanner/internal/models"
	"github.com/oddsflow/scanner/internal/scoring"
	"github.com/oddsflow/scanner/internal/storage"
)

// Options controls one ranking query.
type Options struct {
	Limit      int     // max entries returned
	MaxP       float64 // markets quoted above this are excluded outright
	MinScore   float64 // score floor for inclusion
	MinHistory int     // minimum snapshots needed to support a baseline
	Window     int     // rolling window length for the flow baseline
}

// DefaultOptions returns the standard ranking parameters.
func DefaultOptions() Options {
	return Options{
		Limit:      25,
		MaxP:       0.98,
		MinScore:   0.0,
		MinHistory: 3,
		Window:     60,
	}
}

// PublishThresholds is the secondary gate applied before human-facing output.
// An entry is published only when it clears every threshold.
type PublishThresholds struct {
	ZMin          float64 `json:"z_min"`
	DepthRatioMin float64 `json:"depth_ratio_min"`
	EntropyMin    float64 `json:"entropy_min"`
	PMin          float64 `json:"p_min"`
	PMax          float64 `json:"p_max"`
}

// DefaultPublishThresholds returns the standard publish gate.
func DefaultPublishThresholds() PublishThresholds {
	return PublishThresholds{
		ZMin:          2.5,
		DepthRatioMin: 0.05,
		EntropyMin:    0.45,
		PMin:          0.05,
		PMax:          0.95,
	}
}

// Ranker computes anomaly rankings from the snapshot store.
type Ranker struct {
	store *storage.Storage
}

// New creates a Ranker reading from the given store.
func New(store *storage.Storage) *Ranker {
	return &Ranker{store: store}
}

// Top returns the highest-scoring markets, best first. The result is a
// best-effort list over whatever markets currently have sufficient valid
// history; zero known markets yields an empty list, not an error.
func (r *Ranker) Top(opts Options) ([]models.RankedMarket, error) {
	if opts.Limit <= 0 {
		return []models.RankedMarket{}, nil
	}

	keys, err := r.store.DistinctMarkets()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate markets: %w", err)
	}

	results := make([]models.RankedMarket, 0, len(keys))
	for _, key := range keys {
		latest, err := r.store.Latest(key.Platform, key.MarketID)
		if err != nil {
			return nil, fmt.Errorf("failed to load latest snapshot for %s:%s: %w", key.Platform, key.MarketID, err)
		}
		if latest == nil {
			continue
		}
		// Near-certain markets are excluded from ranking outright.
		if latest.P > opts.MaxP {
			continue
		}

		hist, err := r.store.FlowHistory(key.Platform, key.MarketID, opts.Window)
		if err != nil {
			return nil, fmt.Errorf("failed to load flow history for %s:%s: %w", key.Platform, key.MarketID, err)
		}
		if len(hist) < opts.MinHistory {
			continue
		}

		mu, sigma := scoring.Baseline(hist)
		bd := scoring.Compute(latest.P, latest.Flow, latest.Depth, mu, sigma)
		if bd.Score < opts.MinScore {
			continue
		}

		results = append(results, models.RankedMarket{
			Platform:     latest.Platform,
			MarketID:     latest.MarketID,
			Title:        latest.Title,
			Timestamp:    latest.Timestamp,
			P:            latest.P,
			Flow:         latest.Flow,
			Depth:        latest.Depth,
			ZFlow:        bd.ZFlow,
			DepthRatio:   bd.DepthRatio,
			Entropy:      bd.Entropy,
			Score:        bd.Score,
			Bid:          latest.Bid,
			Ask:          latest.Ask,
			Mid:          latest.Mid,
			Volume24h:    latest.Volume24h,
			OpenInterest: latest.OpenInterest,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// ApplyPublishFilter keeps the entries that clear every publish threshold.
// Returns a non-nil slice.
func ApplyPublishFilter(results []models.RankedMarket, t PublishThresholds) []models.RankedMarket {
	filtered := make([]models.RankedMarket, 0, len(results))
	for _, r := range results {
		if r.P < t.PMin || r.P > t.PMax {
			continue
		}
		if r.ZFlow < t.ZMin {
			continue
		}
		if r.DepthRatio < t.DepthRatioMin {
			continue
		}
		if r.Entropy < t.EntropyMin {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}
