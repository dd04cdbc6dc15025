// Package selection finds order statistics in small sample buffers.
package selection

// Select returns the value that would sit at index rank if samples were
// sorted in ascending order. It reorders samples in place.
//
// The search is quickselect over a Lomuto partition that always takes the
// last element of the active range as pivot, narrowing to the side holding
// rank until the pivot lands on it. Expected time is linear; already sorted
// or adversarial input degrades to quadratic, which is fine for filter
// windows of a few dozen samples.
//
// rank must be within [0, len(samples)); an out-of-range rank panics the
// same way an out-of-range slice index does.
func Select(samples []uint8, rank int) uint8 {
	if rank < 0 || rank >= len(samples) {
		panic("selection: rank out of range")
	}

	lo, hi := 0, len(samples)-1
	for lo < hi {
		p := partition(samples, lo, hi)
		switch {
		case rank == p:
			return samples[p]
		case rank < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
	return samples[lo]
}

// Median returns the middle-ranked value of an odd-length buffer.
// Even lengths are not supported; the lower median is returned for them.
func Median(samples []uint8) uint8 {
	return Select(samples, (len(samples)-1)/2)
}

// partition moves every element <= samples[hi] in front of the pivot and
// returns the pivot's final index.
func partition(samples []uint8, lo, hi int) int {
	pivot := samples[hi]
	pos := lo
	for i := lo; i < hi; i++ {
		if samples[i] <= pivot {
			samples[pos], samples[i] = samples[i], samples[pos]
			pos++
		}
	}
	samples[pos], samples[hi] = samples[hi], samples[pos]
	return pos
}
