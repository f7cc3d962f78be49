package ratelimit

import (
	"math/rand/v2"
	"time"
)

// Jitter draws durations uniformly from [Min, Max].
type Jitter struct {
	Min   time.Duration
	Max   time.Duration
	float func() float64
}

// NewJitter returns a Jitter; bounds are swapped if given in the wrong order.
func NewJitter(lo, hi time.Duration) Jitter {
	if hi < lo {
		lo, hi = hi, lo
	}
	if lo < 0 {
		lo = 0
	}
	return Jitter{Min: lo, Max: hi, float: rand.Float64}
}

// Next returns the next random delay.
func (j Jitter) Next() time.Duration {
	if j.Max <= j.Min {
		return j.Min
	}
	f := j.float
	if f == nil {
		f = rand.Float64
	}
	return j.Min + time.Duration(f()*float64(j.Max-j.Min))
}
