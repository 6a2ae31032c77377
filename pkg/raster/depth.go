package raster

import (
	"fmt"
	"math"
	"sync/atomic"
)

// DepthFar is the cleared depth value; any visible sample is nearer.
const DepthFar uint32 = math.MaxUint32

// NoOwner marks a pixel no primitive covers.
const NoOwner uint32 = math.MaxUint32

// Kind is the primitive family stored in the top two bits of an owner id.
type Kind uint32

const (
	KindTriangle Kind = iota
	KindParticle
	KindVoxel
	KindLine
)

func (k Kind) String() string {
	switch k {
	case KindTriangle:
		return "triangle"
	case KindParticle:
		return "particle"
	case KindVoxel:
		return "voxel"
	case KindLine:
		return "line"
	}
	return fmt.Sprintf("kind(%d)", uint32(k))
}

const (
	kindShift = 30
	indexMask = 1<<kindShift - 1
	// MaxPrimitives is the largest per-kind primitive count an owner id can
	// address.
	MaxPrimitives = indexMask
)

// EncodeOwner packs a primitive kind and index into an owner id.
func EncodeOwner(kind Kind, index int) uint32 {
	return uint32(kind)<<kindShift | uint32(index)&indexMask
}

// DecodeOwner splits an owner id.
func DecodeOwner(owner uint32) (Kind, int) {
	return Kind(owner >> kindShift), int(owner & indexMask)
}

// QuantizeDepth maps a normalized-space z in [-1, 1] to fixed point. Depths
// outside the clip range are rejected.
func QuantizeDepth(z float64) (uint32, bool) {
	z01 := (z + 1) / 2
	if !(z01 >= 0 && z01 <= 1) {
		return 0, false
	}
	return uint32(z01 * float64(DepthFar-1)), true
}

// DepthBuffer is the per-pixel fixed-point depth and owner store. Both words
// are only touched through atomics, so any number of lanes may claim pixels
// concurrently.
type DepthBuffer struct {
	Width, Height int

	depth []atomic.Uint32
	owner []atomic.Uint32
}

// NewDepthBuffer allocates a cleared buffer.
func NewDepthBuffer(width, height int) *DepthBuffer {
	d := &DepthBuffer{
		Width:  width,
		Height: height,
		depth:  make([]atomic.Uint32, width*height),
		owner:  make([]atomic.Uint32, width*height),
	}
	d.Clear(0, width*height)
	return d
}

// Clear resets pixels [lo, hi) to DepthFar and NoOwner.
func (d *DepthBuffer) Clear(lo, hi int) {
	for i := lo; i < hi; i++ {
		d.depth[i].Store(DepthFar)
		d.owner[i].Store(NoOwner)
	}
}

// Len returns the pixel count.
func (d *DepthBuffer) Len() int {
	return len(d.depth)
}

// Depth returns the stored depth of pixel i.
func (d *DepthBuffer) Depth(i int) uint32 {
	return d.depth[i].Load()
}

// Owner returns the stored owner of pixel i.
func (d *DepthBuffer) Owner(i int) uint32 {
	return d.owner[i].Load()
}

// Claim lowers the depth of pixel i to z if z is nearer. The stored value is
// always the minimum of every claim made since the last clear.
func (d *DepthBuffer) Claim(i int, z uint32) {
	casMin(&d.depth[i], z)
}

// Confirm records owner for pixel i if z equals the final depth. It must
// only run after every Claim of the frame has completed. Among primitives at
// the same depth the smallest owner id wins, so the result does not depend
// on scheduling.
func (d *DepthBuffer) Confirm(i int, z, owner uint32) {
	if d.depth[i].Load() != z {
		return
	}
	casMin(&d.owner[i], owner)
}

func casMin(slot *atomic.Uint32, v uint32) {
	for {
		cur := slot.Load()
		if v >= cur {
			return
		}
		if slot.CompareAndSwap(cur, v) {
			return
		}
	}
}
