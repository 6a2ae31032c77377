package geom

import "github.com/taigrr/prism/pkg/math3d"

// Line is a world-space wireframe segment.
type Line struct {
	A, B     math3d.Vec3
	Material int32
}

// Lines is the wireframe segment buffer.
type Lines struct {
	Buffer[Line]
}

// NewLines allocates a line buffer.
func NewLines(capacity int, policy Overflow) *Lines {
	return &Lines{NewBuffer[Line]("lines", capacity, policy)}
}

var cubeEdges = [12][2]int{
	{0, 1}, {1, 3}, {3, 2}, {2, 0},
	{4, 5}, {5, 7}, {7, 6}, {6, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// BoxEdges returns the twelve edges of box.
func BoxEdges(box AABB, material int32) []Line {
	var corners [8]math3d.Vec3
	for i := range corners {
		corners[i] = math3d.V3(
			pick(i&1 != 0, box.Max.X, box.Min.X),
			pick(i&2 != 0, box.Max.Y, box.Min.Y),
			pick(i&4 != 0, box.Max.Z, box.Min.Z),
		)
	}
	out := make([]Line, 0, len(cubeEdges))
	for _, e := range cubeEdges {
		out = append(out, Line{A: corners[e[0]], B: corners[e[1]], Material: material})
	}
	return out
}

// Grid returns lines on the XZ plane at height y, spanning size with the
// given spacing.
func Grid(y, size, step float64, material int32) []Line {
	half := size / 2
	var out []Line
	for x := -half; x <= half+step/2; x += step {
		out = append(out, Line{A: math3d.V3(x, y, -half), B: math3d.V3(x, y, half), Material: material})
	}
	for z := -half; z <= half+step/2; z += step {
		out = append(out, Line{A: math3d.V3(-half, y, z), B: math3d.V3(half, y, z), Material: material})
	}
	return out
}

// Axes returns three segments from the origin along +X, +Y and +Z using one
// material id per axis.
func Axes(length float64, x, y, z int32) []Line {
	o := math3d.Zero3()
	return []Line{
		{A: o, B: math3d.V3(length, 0, 0), Material: x},
		{A: o, B: math3d.V3(0, length, 0), Material: y},
		{A: o, B: math3d.V3(0, 0, length), Material: z},
	}
}
