package connector

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/oddsflow/scanner/internal/models"
)

// Mock is a synthetic market generator for testing and local runs.
// Markets keep a fixed depth and random-walk their probability each fetch;
// flow is mostly quiet with occasional large spikes, so a few markets look
// anomalous against their own baseline after a handful of polls.
type Mock struct {
	rng     *rand.Rand
	markets []models.Observation
}

// NewMock creates a mock connector with n markets and a deterministic seed.
func NewMock(n int, seed int64) *Mock {
	rng := rand.New(rand.NewSource(seed))
	markets := make([]models.Observation, 0, n)
	for i := 0; i < n; i++ {
		markets = append(markets, models.Observation{
			Platform: "mock",
			MarketID: fmt.Sprintf("m%d", i),
			Title:    fmt.Sprintf("Mock Market %d", i),
			P:        rng.Float64(),
			Flow:     0.0,
			Depth:    200 + rng.Float64()*(8000-200),
		})
	}
	return &Mock{rng: rng, markets: markets}
}

// Fetch advances every market one step and returns a copy of the batch.
func (m *Mock) Fetch(_ context.Context) ([]models.Observation, error) {
	out := make([]models.Observation, 0, len(m.markets))
	for i := range m.markets {
		mk := &m.markets[i]

		base := m.rng.Float64() * 50
		spike := 0.0
		if m.rng.Float64() >= 0.85 {
			spike = 200 + m.rng.Float64()*(2500-200)
		}
		mk.Flow = base + spike

		mk.P = mk.P + (m.rng.Float64()*2-1)*0.015
		mk.P = math.Min(math.Max(mk.P, 0.001), 0.999)

		out = append(out, *mk)
	}
	return out, nil
}
