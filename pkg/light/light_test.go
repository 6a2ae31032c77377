package light

import (
	"math"
	"testing"

	"github.com/taigrr/prism/pkg/math3d"
)

func TestIncident(t *testing.T) {
	tests := []struct {
		name     string
		light    Light
		at       math3d.Vec3
		wantDir  math3d.Vec3
		wantDist float64
		wantRad  math3d.Vec3
	}{
		{
			name:     "sun overhead",
			light:    NewDirectional(math3d.V3(0, -2, 0), math3d.Splat3(3)),
			at:       math3d.V3(5, 0, 1),
			wantDir:  math3d.V3(0, 1, 0),
			wantDist: math.Inf(1),
			wantRad:  math3d.Splat3(3),
		},
		{
			name:     "point inverse square",
			light:    NewPoint(math3d.V3(0, 2, 0), math3d.Splat3(8)),
			at:       math3d.V3(0, 0, 0),
			wantDir:  math3d.V3(0, 1, 0),
			wantDist: 2,
			wantRad:  math3d.Splat3(2),
		},
		{
			name:    "point at the shading point",
			light:   NewPoint(math3d.V3(1, 1, 1), math3d.Splat3(8)),
			at:      math3d.V3(1, 1, 1),
			wantRad: math3d.Vec3{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, dist, rad := tt.light.Incident(tt.at)
			if dir.Sub(tt.wantDir).Len() > 1e-12 {
				t.Errorf("dir: got %v, want %v", dir, tt.wantDir)
			}
			if dist != tt.wantDist {
				t.Errorf("dist: got %v, want %v", dist, tt.wantDist)
			}
			if rad.Sub(tt.wantRad).Len() > 1e-12 {
				t.Errorf("radiance: got %v, want %v", rad, tt.wantRad)
			}
		})
	}
}
