package grid

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const (
	// DefaultMinStep is the floor on the sampling step in meters
	DefaultMinStep = 0.01

	// DefaultStepFactor is the sampling step relative to the cell size
	DefaultStepFactor = 0.5

	// Edges shorter than this are treated as a repeated point
	degenerateEdge = 1e-6
)

// Sampler walks polylines at a fixed metric step
type Sampler struct {
	step float64
}

// NewSampler returns a sampler stepping cellSize*stepFactor meters,
// but never less than minStep. A non-positive or infinite minStep uses
// DefaultMinStep. An infinite step uses DefaultStepFactor instead of
// stepFactor, and minStep if that is still not finite.
func NewSampler(cellSize, stepFactor, minStep float64) *Sampler {
	if !(minStep > 0) || math.IsInf(minStep, 1) {
		minStep = DefaultMinStep
	}
	step := cellSize * stepFactor
	if math.IsInf(step, 0) {
		step = cellSize * DefaultStepFactor
	}
	if !(step > minStep) || math.IsInf(step, 1) {
		step = minStep
	}
	return &Sampler{step: step}
}

// Step returns the sampling step in meters
func (s *Sampler) Step() float64 {
	return s.step
}

// SamplePair emits points from a to b, both ends included, no two
// consecutive points farther apart than Step. It returns the number of
// points emitted, which is zero for a degenerate edge. Edges of infinite
// or NaN length count as degenerate.
func (s *Sampler) SamplePair(a, b orb.Point, emit func(orb.Point)) int {
	length := planar.Distance(a, b)
	if !(length >= degenerateEdge) || math.IsInf(length, 1) {
		return 0
	}

	n := int(math.Ceil(length / s.step))
	if n < 1 {
		n = 1
	}
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		emit(lerp(a, b, t))
	}
	return n + 1
}

// SampleLine runs SamplePair over every consecutive pair of pts.
// It returns the number of points emitted and the number of degenerate
// edges skipped.
func (s *Sampler) SampleLine(pts []orb.Point, emit func(orb.Point)) (samples, degenerate int) {
	for i := 0; i+1 < len(pts); i++ {
		n := s.SamplePair(pts[i], pts[i+1], emit)
		if n == 0 {
			degenerate++
		}
		samples += n
	}
	return samples, degenerate
}

func lerp(a, b orb.Point, t float64) orb.Point {
	return orb.Point{
		a[0] + (b[0]-a[0])*t,
		a[1] + (b[1]-a[1])*t,
	}
}
