package ranker

import (
	"fmt"
	"testing"
	"time"

	"github.com/oddsflow/scanner/internal/models"
	"github.com/oddsflow/scanner/internal/storage"
)

func newTestStore(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var idSeq int

// seedMarket appends one snapshot per flow value, oldest first, all for the
// same market. p and depth apply to every snapshot.
func seedMarket(t *testing.T, s *storage.Storage, platform, marketID string, p, depth float64, flows []float64) {
	t.Helper()
	base := time.Now().Add(-time.Duration(len(flows)) * time.Minute)
	for i, f := range flows {
		idSeq++
		snap := &models.Snapshot{
			ID: fmt.Sprintf("snap-%d", idSeq),
			Observation: models.Observation{
				Platform: platform,
				MarketID: marketID,
				Title:    "Market " + marketID,
				P:        p,
				Flow:     f,
				Depth:    depth,
			},
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Append(snap); err != nil {
			t.Fatalf("seed append: %v", err)
		}
	}
}

func defaultTestOptions() Options {
	return Options{Limit: 25, MaxP: 0.98, MinScore: 0.0, MinHistory: 3, Window: 60}
}

func TestTop_EmptyStore(t *testing.T) {
	s := newTestStore(t)
	rk := New(s)

	results, err := rk.Top(defaultTestOptions())
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d entries, want 0", len(results))
	}
}

func TestTop_ExcludesInsufficientHistory(t *testing.T) {
	s := newTestStore(t)
	// Only 2 snapshots with min_history 3
	seedMarket(t, s, "mock", "short", 0.5, 1000, []float64{10, 500})
	seedMarket(t, s, "mock", "long", 0.5, 1000, []float64{10, 10, 10, 500})

	rk := New(s)
	results, err := rk.Top(defaultTestOptions())
	if err != nil {
		t.Fatalf("Top: %v", err)
	}

	for _, r := range results {
		if r.MarketID == "short" {
			t.Error("market with 2 snapshots appeared despite min_history=3")
		}
	}
	if len(results) != 1 || results[0].MarketID != "long" {
		t.Errorf("results = %+v, want exactly [long]", results)
	}
}

func TestTop_ExcludesNearCertainMarkets(t *testing.T) {
	s := newTestStore(t)
	// Strong anomaly but quoted at 0.99 with ceiling 0.98
	seedMarket(t, s, "mock", "certain", 0.99, 10, []float64{1, 1, 1, 9000})
	seedMarket(t, s, "mock", "open", 0.5, 10, []float64{1, 1, 1, 9000})

	rk := New(s)
	results, err := rk.Top(defaultTestOptions())
	if err != nil {
		t.Fatalf("Top: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("results = %d entries, want 1", len(results))
	}
	if results[0].MarketID != "open" {
		t.Errorf("ranked market = %s, want open", results[0].MarketID)
	}
}

func TestTop_SortedDescendingByScore(t *testing.T) {
	s := newTestStore(t)
	// Same shape of history, different spike sizes: bigger spike scores higher
	seedMarket(t, s, "mock", "small", 0.5, 1000, []float64{10, 10, 10, 200})
	seedMarket(t, s, "mock", "big", 0.5, 1000, []float64{10, 10, 10, 2000})
	seedMarket(t, s, "mock", "quiet", 0.5, 1000, []float64{10, 10, 10, 10})

	rk := New(s)
	results, err := rk.Top(defaultTestOptions())
	if err != nil {
		t.Fatalf("Top: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("results = %d entries, want 3", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted descending: score[%d]=%v > score[%d]=%v",
				i, results[i].Score, i-1, results[i-1].Score)
		}
	}
	if results[0].MarketID != "big" {
		t.Errorf("top market = %s, want big", results[0].MarketID)
	}
	if results[2].MarketID != "quiet" {
		t.Errorf("bottom market = %s, want quiet", results[2].MarketID)
	}
}

func TestTop_TruncatesToLimit(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		seedMarket(t, s, "mock", fmt.Sprintf("m%d", i), 0.5, 1000, []float64{10, 10, 10, float64(100 * (i + 1))})
	}

	rk := New(s)
	opts := defaultTestOptions()
	opts.Limit = 2
	results, err := rk.Top(opts)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("results = %d entries, want 2", len(results))
	}
}

func TestTop_MinScoreFloor(t *testing.T) {
	s := newTestStore(t)
	seedMarket(t, s, "mock", "quiet", 0.5, 1000, []float64{10, 10, 10, 10})

	rk := New(s)
	opts := defaultTestOptions()
	opts.MinScore = 1.0
	results, err := rk.Top(opts)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("quiet market with min_score=1.0: got %d entries, want 0", len(results))
	}
}

func TestTop_BreakdownFieldsPopulated(t *testing.T) {
	s := newTestStore(t)
	seedMarket(t, s, "kalshi", "M1", 0.5, 100, []float64{10, 10, 10, 500})

	rk := New(s)
	results, err := rk.Top(defaultTestOptions())
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d entries, want 1", len(results))
	}

	r := results[0]
	if r.ZFlow <= 0 {
		t.Errorf("z_flow = %v, want > 0 for a spike above baseline", r.ZFlow)
	}
	if r.DepthRatio <= 0 {
		t.Errorf("depth_ratio = %v, want > 0", r.DepthRatio)
	}
	if r.Entropy <= 0.69 || r.Entropy >= 0.70 {
		t.Errorf("entropy at p=0.5 = %v, want ~ln 2", r.Entropy)
	}
	if r.Score <= 0 {
		t.Errorf("score = %v, want > 0", r.Score)
	}
	if r.Platform != "kalshi" || r.Title == "" || r.Timestamp.IsZero() {
		t.Errorf("identity fields not populated: %+v", r)
	}
}

func TestApplyPublishFilter(t *testing.T) {
	thresholds := PublishThresholds{
		ZMin:          2.5,
		DepthRatioMin: 0.05,
		EntropyMin:    0.45,
		PMin:          0.05,
		PMax:          0.95,
	}

	base := models.RankedMarket{
		Platform:   "kalshi",
		MarketID:   "M1",
		Title:      "t",
		P:          0.5,
		ZFlow:      3.0,
		DepthRatio: 0.1,
		Entropy:    0.5,
		Score:      1.0,
	}

	tests := []struct {
		name   string
		mutate func(*models.RankedMarket)
		want   int
	}{
		{name: "passes all thresholds", mutate: func(r *models.RankedMarket) {}, want: 1},
		{name: "p above range", mutate: func(r *models.RankedMarket) { r.P = 0.97 }, want: 0},
		{name: "p below range", mutate: func(r *models.RankedMarket) { r.P = 0.01 }, want: 0},
		{name: "z below floor", mutate: func(r *models.RankedMarket) { r.ZFlow = 2.0 }, want: 0},
		{name: "depth ratio below floor", mutate: func(r *models.RankedMarket) { r.DepthRatio = 0.01 }, want: 0},
		{name: "entropy below floor", mutate: func(r *models.RankedMarket) { r.Entropy = 0.3 }, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := base
			tt.mutate(&entry)
			got := ApplyPublishFilter([]models.RankedMarket{entry}, thresholds)
			if len(got) != tt.want {
				t.Errorf("filtered entries = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestApplyPublishFilter_NonNilOnEmpty(t *testing.T) {
	got := ApplyPublishFilter(nil, DefaultPublishThresholds())
	if got == nil {
		t.Error("ApplyPublishFilter(nil) = nil, want empty slice")
	}
}
