// Package bvh builds and traverses a flat, heap-indexed bounding volume
// hierarchy.
//
// Node 1 is the root and node i has children 2i and 2i+1. Build splits the
// sorted primitive set at its median, so the tree is balanced and fits in
// 2^(ceil(log2 n)+1) slots. Traversal is iterative over a caller-owned Stack
// so that concurrent rays never share state.
package bvh

import (
	"cmp"
	"errors"
	"fmt"
	"math/bits"
	"slices"

	"github.com/taigrr/prism/pkg/geom"
	"github.com/taigrr/prism/pkg/log"
	"github.com/taigrr/prism/pkg/math3d"
)

var logger = log.New("bvh")

var (
	// ErrCapacity is returned when the tree would need more nodes than
	// Options.MaxNodes.
	ErrCapacity = errors.New("bvh: node capacity exceeded")
	// ErrBuildDepth is returned when the tree would be deeper than
	// Options.MaxDepth.
	ErrBuildDepth = errors.New("bvh: build depth exceeded")
	// ErrStackOverflow is returned when traversal needs more stack than the
	// caller provided.
	ErrStackOverflow = errors.New("bvh: traversal stack overflow")
)

// NodeKind discriminates a Node.
type NodeKind uint8

const (
	Unused NodeKind = iota
	Leaf
	SplitX
	SplitY
	SplitZ
)

func (k NodeKind) String() string {
	switch k {
	case Unused:
		return "unused"
	case Leaf:
		return "leaf"
	case SplitX:
		return "split-x"
	case SplitY:
		return "split-y"
	case SplitZ:
		return "split-z"
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Node is one slot of the heap array. Prim is only meaningful for leaves.
type Node struct {
	Kind   NodeKind
	Bounds geom.AABB
	Prim   int32
}

// DefaultMaxDepth bounds the tree depth when Options.MaxDepth is zero.
const DefaultMaxDepth = 48

// Options limit the size of a build. Zero values mean no node limit and
// DefaultMaxDepth.
type Options struct {
	MaxNodes int
	MaxDepth int
}

// Intersector tests a ray against primitive i. geom.Triangles, geom.Spheres
// and geom.Boxes implement it.
type Intersector interface {
	Intersect(i int, r math3d.Ray, tMax float64) (float64, math3d.Vec2, bool)
}

// Hit is the closest intersection found by a traversal.
type Hit struct {
	T    float64
	Prim int
	UV   math3d.Vec2
}

// BVH is an immutable hierarchy over a set of primitive bounds.
type BVH struct {
	nodes []Node
	count int
	depth int
}

// Capacity is the node array length Build allocates for n primitives.
func Capacity(n int) int {
	if n <= 1 {
		return 2
	}
	return 1 << (bits.Len(uint(n-1)) + 1)
}

// depthFor is ceil(log2 n), the depth of a median-split tree over n leaves.
func depthFor(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

type buildTask struct {
	node   int
	lo, hi int
	depth  int
}

// Build constructs a hierarchy over boxes; primitive i is boxes[i].
func Build(boxes []geom.AABB, opts Options) (*BVH, error) {
	n := len(boxes)
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if d := depthFor(n); d > maxDepth {
		return nil, fmt.Errorf("%d primitives need depth %d, limit %d: %w", n, d, maxDepth, ErrBuildDepth)
	}
	capacity := Capacity(n)
	if opts.MaxNodes > 0 && capacity > opts.MaxNodes {
		return nil, fmt.Errorf("%d primitives need %d nodes, limit %d: %w", n, capacity, opts.MaxNodes, ErrCapacity)
	}

	b := &BVH{nodes: make([]Node, capacity), count: n}
	if n == 0 {
		return b, nil
	}

	order := make([]int32, n)
	for i := range order {
		order[i] = int32(i)
	}
	centers := make([]math3d.Vec3, n)
	for i, box := range boxes {
		centers[i] = box.Center()
	}

	tasks := []buildTask{{node: 1, lo: 0, hi: n}}
	for len(tasks) > 0 {
		t := tasks[len(tasks)-1]
		tasks = tasks[:len(tasks)-1]
		b.depth = max(b.depth, t.depth)

		set := order[t.lo:t.hi]
		if len(set) == 1 {
			b.nodes[t.node] = Node{Kind: Leaf, Bounds: boxes[set[0]], Prim: set[0]}
			continue
		}

		bounds := geom.EmptyAABB()
		spread := geom.EmptyAABB()
		for _, i := range set {
			bounds = bounds.Union(boxes[i])
			spread = spread.Extend(centers[i])
		}
		axis := spread.LongestAxis()
		slices.SortStableFunc(set, func(a, b int32) int {
			return cmp.Compare(centers[a].Axis(axis), centers[b].Axis(axis))
		})

		b.nodes[t.node] = Node{Kind: SplitX + NodeKind(axis), Bounds: bounds, Prim: -1}
		mid := t.lo + (len(set)+1)/2
		tasks = append(tasks,
			buildTask{node: 2 * t.node, lo: t.lo, hi: mid, depth: t.depth + 1},
			buildTask{node: 2*t.node + 1, lo: mid, hi: t.hi, depth: t.depth + 1},
		)
	}

	logger.Debugf("built %d primitives into %d slots, depth %d", n, capacity, b.depth)
	return b, nil
}

// Len returns the number of primitives.
func (b *BVH) Len() int {
	return b.count
}

// Depth returns the depth of the deepest leaf; the root is depth 0.
func (b *BVH) Depth() int {
	return b.depth
}

// Nodes exposes the heap array. Index 0 is never used.
func (b *BVH) Nodes() []Node {
	return b.nodes
}

// Bounds returns the root box, or an empty box for an empty tree.
func (b *BVH) Bounds() geom.AABB {
	if b.nodes[1].Kind == Unused {
		return geom.EmptyAABB()
	}
	return b.nodes[1].Bounds
}

// StackSize is the stack capacity that traversal of this tree needs.
func (b *BVH) StackSize() int {
	return b.depth + 2
}

// NewStack returns a stack sized for this tree.
func (b *BVH) NewStack() *Stack {
	return NewStack(b.StackSize())
}
