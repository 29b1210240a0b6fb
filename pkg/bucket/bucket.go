// Package bucket ranks a population into quantile buckets, with an
// equal-width fallback for populations too small or too uniform to produce
// distinct quantile cut points.
package bucket

import "sort"

// Scores assigns each value a bucket score in [1,n], ascending (higher value
// gets a higher score). The fallback return reports that equal-width binning
// over the observed range was used instead of quantile ranking, which happens
// when the population is below minPop or has fewer than n distinct values.
// Ties always receive the same score.
func Scores(values []float64, n, minPop int) ([]int, bool) {
	if len(values) == 0 {
		return nil, false
	}
	if len(values) < minPop || distinct(values) < n {
		return equalWidth(values, n), true
	}
	return quantile(values, n), false
}

// Invert flips scores so that the lowest raw value gets the highest score.
// Recency scoring uses this: fewer days since last order is better.
func Invert(scores []int, n int) []int {
	out := make([]int, len(scores))
	for i, s := range scores {
		out[i] = n + 1 - s
	}
	return out
}

func distinct(values []float64) int {
	set := make(map[float64]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return len(set)
}

// quantile scores by rank of the first occurrence of each value in sorted
// order, so the population splits into n near-equal groups and ties share a
// score.
func quantile(values []float64, n int) []int {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	firstRank := make(map[float64]int, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		firstRank[sorted[i]] = i
	}

	scores := make([]int, len(values))
	for i, v := range values {
		s := firstRank[v]*n/len(values) + 1
		if s > n {
			s = n
		}
		scores[i] = s
	}
	return scores
}

// equalWidth splits [min, max] into n equal bins. A zero-width range scores
// everyone at the midpoint bucket.
func equalWidth(values []float64, n int) []int {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	scores := make([]int, len(values))
	if hi == lo {
		mid := (n + 1) / 2
		for i := range scores {
			scores[i] = mid
		}
		return scores
	}

	width := (hi - lo) / float64(n)
	for i, v := range values {
		b := int((v - lo) / width)
		if b >= n {
			b = n - 1
		}
		scores[i] = b + 1
	}
	return scores
}
