package drift

import (
	"math"
	"sort"
)

// fracFloor keeps bucket fractions away from log(0) / division by zero
const fracFloor = 1e-6

// PSI computes the Population Stability Index between two numeric samples.
// Bucket edges are decile-style quantiles of the expected (baseline) sample
// only; the actual (current) sample is histogrammed into the same edges.
//
// Degeneracies are absorbed, never raised: an empty sample on either side
// or a near-constant baseline (fewer than 3 distinct edges) scores 0,
// meaning "no evidence of drift".
func PSI(expected, actual []float64, buckets int) float64 {
	if len(expected) == 0 || len(actual) == 0 {
		return 0
	}
	if buckets < 1 {
		buckets = 10
	}

	edges := quantileEdges(expected, buckets)
	if len(edges) < 3 {
		return 0
	}

	ePct := bucketFractions(expected, edges)
	aPct := bucketFractions(actual, edges)

	var psi float64
	for i := range ePct {
		psi += (aPct[i] - ePct[i]) * math.Log(aPct[i]/ePct[i])
	}
	return psi
}

// quantileEdges returns the deduplicated buckets+1 quantile edges of x,
// using linear interpolation between order statistics.
func quantileEdges(x []float64, buckets int) []float64 {
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)

	edges := make([]float64, 0, buckets+1)
	for i := 0; i <= buckets; i++ {
		q := float64(i) / float64(buckets)
		v := quantile(sorted, q)
		if len(edges) == 0 || v != edges[len(edges)-1] {
			edges = append(edges, v)
		}
	}
	return edges
}

// quantile interpolates linearly on an ascending-sorted sample
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}

// bucketFractions histograms x into the edges and normalizes counts by the
// in-range total. Values outside [edges[0], edges[last]] are excluded; the
// last bucket is closed on the right. Each fraction is clamped to
// [fracFloor, 1].
func bucketFractions(x []float64, edges []float64) []float64 {
	nb := len(edges) - 1
	counts := make([]int, nb)

	total := 0
	for _, v := range x {
		if v < edges[0] || v > edges[nb] {
			continue
		}
		// binary search for the bucket whose left edge is <= v
		idx := sort.SearchFloat64s(edges, v)
		if idx > 0 && edges[idx] != v {
			idx--
		}
		if idx >= nb {
			idx = nb - 1 // right edge of the last bucket is inclusive
		}
		counts[idx]++
		total++
	}

	if total < 1 {
		total = 1
	}

	fracs := make([]float64, nb)
	for i, c := range counts {
		f := float64(c) / float64(total)
		if f < fracFloor {
			f = fracFloor
		}
		if f > 1 {
			f = 1
		}
		fracs[i] = f
	}
	return fracs
}
