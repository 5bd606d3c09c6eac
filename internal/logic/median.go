package logic

import "sort"

// Median returns the median of samples without modifying the slice.
// For an even count it returns the integer mean of the two middle values.
// Returns 0 for an empty slice.
func Median(samples []int) int {
	n := len(samples)
	if n == 0 {
		return 0
	}

	sorted := make([]int, n)
	copy(sorted, samples)
	sort.Ints(sorted)

	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
