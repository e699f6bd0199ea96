package rank

import "slices"

// TopK returns up to k items ordered by descending score. Items with equal
// scores keep their input order. k <= 0 returns every item. items is not
// modified.
func TopK[T any](items []T, k int, score func(T) float32) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b T) int {
		sa, sb := score(a), score(b)
		switch {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		}
		return 0
	})
	if k > 0 && k < len(out) {
		out = out[:k]
	}
	return out
}
