package sim

import (
	"math/rand"
	"time"
)

// RandomSource yields uniform values in [0,1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// NewRandom returns a seeded source. A zero seed seeds from the clock.
func NewRandom(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// uniform draws from [lo, hi).
func uniform(rnd RandomSource, lo, hi float64) float64 {
	return lo + rnd.Float64()*(hi-lo)
}

func chance(rnd RandomSource, p float64) bool {
	return rnd.Float64() < p
}

func pick(rnd RandomSource, items []string) string {
	i := int(rnd.Float64() * float64(len(items)))
	if i >= len(items) {
		i = len(items) - 1
	}
	return items[i]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
