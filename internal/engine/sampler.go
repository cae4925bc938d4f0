package engine

import "math/rand/v2"

// Sampler decides whether a PROFILE scope is captured.
type Sampler interface {
	Sample() bool
}

// PercentSampler admits roughly Percent out of every 100 scopes. Each call
// draws a bucket in [0,100) and samples when the bucket is below Percent.
//
// Thread-safety: safe for concurrent use; the top-level math/rand/v2
// functions are goroutine-safe.
type PercentSampler struct {
	Percent int
}

// NewPercentSampler clamps percent to [0,100].
func NewPercentSampler(percent int) PercentSampler {
	return PercentSampler{Percent: max(0, min(percent, 100))}
}

// Sample implements Sampler.
func (s PercentSampler) Sample() bool {
	if s.Percent <= 0 {
		return false
	}
	if s.Percent >= 100 {
		return true
	}
	return rand.IntN(100) < s.Percent
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func() bool

// Sample implements Sampler.
func (f SamplerFunc) Sample() bool { return f() }
