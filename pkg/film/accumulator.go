package film

import (
	"sync/atomic"

	"github.com/taigrr/prism/pkg/math3d"
)

// Accumulator keeps the running mean of the samples of every pixel.
//
// Each pixel is written by one lane per pass. Invalid samples (NaN, infinite
// or negative) are replaced by ErrorColor and counted.
type Accumulator struct {
	Width      int
	Height     int
	ErrorColor math3d.Vec3

	mean       []math3d.Vec3
	count      []uint32
	generation uint64
	errors     atomic.Int64
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator(width, height int, errorColor math3d.Vec3) *Accumulator {
	return &Accumulator{
		Width:      width,
		Height:     height,
		ErrorColor: errorColor,
		mean:       make([]math3d.Vec3, width*height),
		count:      make([]uint32, width*height),
	}
}

// Reset discards every sample.
func (a *Accumulator) Reset() {
	clear(a.mean)
	clear(a.count)
	a.errors.Store(0)
}

// Sync resets the accumulator when generation differs from the one it was
// filled under and reports whether it did. Callers pass the camera or scene
// generation before each pass.
func (a *Accumulator) Sync(generation uint64) bool {
	if generation == a.generation {
		return false
	}
	a.generation = generation
	a.Reset()
	return true
}

// Generation returns the generation the samples belong to.
func (a *Accumulator) Generation() uint64 {
	return a.generation
}

// Add folds sample s into pixel i: mean += (s - mean) / n.
func (a *Accumulator) Add(i int, s math3d.Vec3) {
	if !valid(s) {
		a.errors.Add(1)
		s = a.ErrorColor
	}
	a.count[i]++
	m := a.mean[i]
	a.mean[i] = m.Add(s.Sub(m).Scale(1 / float64(a.count[i])))
}

func valid(s math3d.Vec3) bool {
	return s.IsFinite() && s.X >= 0 && s.Y >= 0 && s.Z >= 0
}

// Mean returns the current estimate of pixel i.
func (a *Accumulator) Mean(i int) math3d.Vec3 {
	return a.mean[i]
}

// Samples returns the sample count of pixel i.
func (a *Accumulator) Samples(i int) int {
	return int(a.count[i])
}

// Errors returns the number of samples replaced by ErrorColor since the last
// reset.
func (a *Accumulator) Errors() int64 {
	return a.errors.Load()
}

// Resolve copies the current estimate into dst, which must have the same
// size.
func (a *Accumulator) Resolve(dst *Image) {
	copy(dst.Pixels, a.mean)
}
