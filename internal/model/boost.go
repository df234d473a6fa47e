package model

import (
	"math"
	"sort"
)

// BoostConfig holds training hyperparameters for the candidate model
type BoostConfig struct {
	LearningRate   float64
	Rounds         int
	ThresholdGrid  int // candidate thresholds per feature
	MinLeafSamples int
}

// DefaultBoostConfig returns the candidate hyperparameters
func DefaultBoostConfig() BoostConfig {
	return BoostConfig{
		LearningRate:   0.08,
		Rounds:         250,
		ThresholdGrid:  16,
		MinLeafSamples: 5,
	}
}

// Stump is a single depth-1 regression tree on one encoded feature
type Stump struct {
	Feature   int
	Threshold float64
	Left      float64 // value when x[Feature] <= Threshold
	Right     float64
}

// BoostedStumps is a gradient-boosted ensemble of stumps trained on
// log-loss, the candidate challenger to the logistic baseline.
type BoostedStumps struct {
	Base         float64 // initial log-odds
	LearningRate float64
	Stumps       []Stump
}

// TrainBoostedStumps fits the ensemble with Newton-step leaf values
func TrainBoostedStumps(x [][]float64, y []int, cfg BoostConfig) *BoostedStumps {
	if len(x) == 0 {
		return &BoostedStumps{}
	}
	if cfg.ThresholdGrid < 2 {
		cfg.ThresholdGrid = 16
	}

	n := len(x)
	dim := len(x[0])

	pos := 0
	for _, label := range y {
		if label == 1 {
			pos++
		}
	}
	// clamp the prior away from 0/1 so the initial log-odds stays finite
	p := (float64(pos) + 1) / (float64(n) + 2)

	m := &BoostedStumps{
		Base:         math.Log(p / (1 - p)),
		LearningRate: cfg.LearningRate,
	}

	thresholds := candidateThresholds(x, dim, cfg.ThresholdGrid)

	score := make([]float64, n)
	for i := range score {
		score[i] = m.Base
	}

	grad := make([]float64, n) // y - p, the negative log-loss gradient
	hess := make([]float64, n) // p * (1 - p)

	for round := 0; round < cfg.Rounds; round++ {
		for i := range x {
			prob := sigmoid(score[i])
			grad[i] = float64(y[i]) - prob
			hess[i] = prob * (1 - prob)
		}

		stump, ok := fitStump(x, grad, hess, thresholds, cfg.MinLeafSamples)
		if !ok {
			break
		}

		m.Stumps = append(m.Stumps, stump)
		for i, xi := range x {
			score[i] += cfg.LearningRate * stump.apply(xi)
		}
	}

	return m
}

// Proba returns P(churn=1 | x)
func (m *BoostedStumps) Proba(x []float64) float64 {
	z := m.Base
	for _, s := range m.Stumps {
		z += m.LearningRate * s.apply(x)
	}
	return sigmoid(z)
}

func (s Stump) apply(x []float64) float64 {
	if s.Feature < len(x) && x[s.Feature] <= s.Threshold {
		return s.Left
	}
	return s.Right
}

// candidateThresholds samples a quantile grid per feature once up front
func candidateThresholds(x [][]float64, dim, grid int) [][]float64 {
	out := make([][]float64, dim)
	col := make([]float64, len(x))

	for j := 0; j < dim; j++ {
		for i, xi := range x {
			col[i] = xi[j]
		}
		sorted := make([]float64, len(col))
		copy(sorted, col)
		sort.Float64s(sorted)

		var ts []float64
		for g := 1; g < grid; g++ {
			v := sorted[g*(len(sorted)-1)/grid]
			if len(ts) == 0 || v != ts[len(ts)-1] {
				ts = append(ts, v)
			}
		}
		out[j] = ts
	}
	return out
}

// fitStump picks the split maximizing the Newton gain over all features
// and candidate thresholds; leaf values are Newton steps sum(g)/sum(h).
func fitStump(x [][]float64, grad, hess []float64, thresholds [][]float64, minLeaf int) (Stump, bool) {
	const lambda = 1.0 // ridge on leaf weights

	var best Stump
	bestGain := math.Inf(-1)
	found := false

	for j := range thresholds {
		for _, thr := range thresholds[j] {
			var gl, gr, hl, hr float64
			var nl, nr int

			for i, xi := range x {
				if xi[j] <= thr {
					gl += grad[i]
					hl += hess[i]
					nl++
				} else {
					gr += grad[i]
					hr += hess[i]
					nr++
				}
			}

			if nl < minLeaf || nr < minLeaf {
				continue
			}

			gain := gl*gl/(hl+lambda) + gr*gr/(hr+lambda)
			if gain > bestGain {
				bestGain = gain
				best = Stump{
					Feature:   j,
					Threshold: thr,
					Left:      gl / (hl + lambda),
					Right:     gr / (hr + lambda),
				}
				found = true
			}
		}
	}

	return best, found
}
