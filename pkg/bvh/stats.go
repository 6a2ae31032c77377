package bvh

// Stats summarizes the shape of a tree.
type Stats struct {
	Primitives    int
	Capacity      int
	Nodes         int
	Leaves        int
	Depth         int
	MeanLeafDepth float64
}

// Stats walks the node array.
func (b *BVH) Stats() Stats {
	s := Stats{Primitives: b.count, Capacity: len(b.nodes), Depth: b.depth}
	depthSum := 0
	for i := 1; i < len(b.nodes); i++ {
		switch b.nodes[i].Kind {
		case Unused:
			continue
		case Leaf:
			s.Leaves++
			depthSum += nodeDepth(i)
		}
		s.Nodes++
	}
	if s.Leaves > 0 {
		s.MeanLeafDepth = float64(depthSum) / float64(s.Leaves)
	}
	return s
}

// nodeDepth is floor(log2 i).
func nodeDepth(i int) int {
	d := 0
	for i > 1 {
		i >>= 1
		d++
	}
	return d
}
