package bvh

import (
	"fmt"

	"github.com/taigrr/prism/pkg/geom"
	"github.com/taigrr/prism/pkg/math3d"
)

type entry struct {
	node int32
	t    float64
}

// Stack is the per-ray traversal stack. It is not safe for concurrent use;
// give each worker lane its own.
type Stack struct {
	items []entry
	n     int
}

// NewStack returns a stack holding at most capacity pending nodes.
func NewStack(capacity int) *Stack {
	return &Stack{items: make([]entry, capacity)}
}

// Cap returns the number of pending nodes the stack can hold.
func (s *Stack) Cap() int { return len(s.items) }

func (s *Stack) push(node int, t float64) error {
	if s.n == len(s.items) {
		return fmt.Errorf("push node %d at depth %d: %w", node, s.n, ErrStackOverflow)
	}
	s.items[s.n] = entry{int32(node), t}
	s.n++
	return nil
}

func (s *Stack) pop() entry {
	s.n--
	return s.items[s.n]
}

// Hit returns the closest intersection with t < tMax.
func (b *BVH) Hit(r math3d.Ray, tMax float64, prims Intersector, stack *Stack) (Hit, bool, error) {
	best := Hit{T: tMax, Prim: -1}
	found := false
	err := b.walk(r, prims, stack, func() float64 { return best.T }, func(prim int, t float64, uv math3d.Vec2) bool {
		best = Hit{T: t, Prim: prim, UV: uv}
		found = true
		return false
	})
	return best, found, err
}

// Occluded reports whether anything intersects r before tMax.
func (b *BVH) Occluded(r math3d.Ray, tMax float64, prims Intersector, stack *Stack) (bool, error) {
	hit := false
	err := b.walk(r, prims, stack, func() float64 { return tMax }, func(int, float64, math3d.Vec2) bool {
		hit = true
		return true
	})
	return hit, err
}

// walk visits leaves whose boxes r enters before limit(). found is called
// for each primitive hit nearer than limit() and stops the walk by
// returning true.
func (b *BVH) walk(r math3d.Ray, prims Intersector, stack *Stack, limit func() float64, found func(int, float64, math3d.Vec2) bool) error {
	stack.n = 0
	if b.nodes[1].Kind == Unused {
		return nil
	}
	inv := geom.InvDir(r.Dir)
	t, ok := b.nodes[1].Bounds.Hit(r.Origin, inv, 0, limit())
	if !ok {
		return nil
	}
	if err := stack.push(1, t); err != nil {
		return err
	}

	for steps := 0; stack.n > 0 && steps < len(b.nodes); steps++ {
		e := stack.pop()
		if e.t >= limit() {
			continue
		}
		i := int(e.node)
		node := &b.nodes[i]
		if node.Kind == Leaf {
			if t, uv, ok := prims.Intersect(int(node.Prim), r, limit()); ok && t < limit() {
				if found(int(node.Prim), t, uv) {
					return nil
				}
			}
			continue
		}

		near, far := 2*i, 2*i+1
		if r.Dir.Axis(int(node.Kind-SplitX)) < 0 {
			near, far = far, near
		}
		// Far first so the near child is popped next.
		for _, c := range [2]int{far, near} {
			child := &b.nodes[c]
			if child.Kind == Unused {
				continue
			}
			if t, ok := child.Bounds.Hit(r.Origin, inv, 0, limit()); ok {
				if err := stack.push(c, t); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
