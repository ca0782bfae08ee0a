// Package scoring computes the odds-aware flow anomaly score.
//
// Each market is scored against its own rolling baseline:
//
//	score = softplus(z_flow) × ln(1 + max(depth_ratio, 0)) × entropy(p)
//
// z_flow measures how far current flow sits above the market's recent mean,
// depth_ratio measures how aggressive that flow is relative to resting
// liquidity, and entropy weights markets by how close the quote is to a
// coin-flip. The multiplicative form requires all three factors at once; any
// single degenerate factor collapses the score toward zero.
package scoring

import (
	"math"

	"github.com/oddsflow/scanner/internal/models"
)

// Epsilon guards divisions and logarithms against degenerate inputs.
const Epsilon = 1e-9

// Entropy returns the binary entropy of p in nats, with p clamped to
// [Epsilon, 1-Epsilon]. Maximal (ln 2) at p = 0.5, tending to 0 as p
// approaches 0 or 1.
func Entropy(p float64) float64 {
	p = math.Min(math.Max(p, Epsilon), 1-Epsilon)
	return -(p*math.Log(p) + (1-p)*math.Log(1-p))
}

// Softplus returns ln(1 + e^x). For x > 30 it returns x directly, where the
// exponential would overflow and the identity is exact to double precision.
func Softplus(x float64) float64 {
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

// Baseline returns the rolling mean and sample standard deviation of a flow
// history. The variance denominator is max(k-1, 1), so a single-element
// history yields sigma = 0 rather than a division by zero. An empty history
// yields (0, 0); callers enforce their own minimum-history requirement.
func Baseline(history []float64) (mu, sigma float64) {
	k := len(history)
	if k == 0 {
		return 0, 0
	}

	var sum float64
	for _, f := range history {
		sum += f
	}
	mu = sum / float64(k)

	var variance float64
	for _, f := range history {
		d := f - mu
		variance += d * d
	}
	variance /= float64(max(k-1, 1))
	return mu, math.Sqrt(variance)
}

// Compute scores one market's latest reading against its baseline.
// Pure function; all derived values are recomputed at query time.
func Compute(p, flow, depth, mu, sigma float64) models.ScoreBreakdown {
	z := (flow - mu) / (sigma + Epsilon)
	r := flow / (depth + Epsilon)
	h := Entropy(p)

	return models.ScoreBreakdown{
		ZFlow:      z,
		DepthRatio: r,
		Entropy:    h,
		Score:      Softplus(z) * math.Log1p(math.Max(r, 0.0)) * h,
	}
}
