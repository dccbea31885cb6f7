package examsession

// Rand is the random source used for sampling. *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// EffectiveCount clamps the requested sample size to [0, total]. A nil
// request means every question.
func EffectiveCount(total int, requested *int) int {
	if requested == nil {
		return total
	}
	return min(max(*requested, 0), total)
}

// Sample shuffles all question indices with Fisher–Yates and returns the
// first EffectiveCount of them.
func Sample(total int, requested *int, rng Rand) []int {
	count := EffectiveCount(total, requested)

	perm := make([]int, total)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < total-1; i++ {
		j := i + rng.IntN(total-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm[:count:count]
}
