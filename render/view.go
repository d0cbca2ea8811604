package render

import (
	"math"

	"github.com/seqsense/scancloud/mat"
	"github.com/seqsense/scancloud/pcd"
)

// FitOrthographic returns a view showing the whole box along -z.
// aspect is width / height of the target. Identity is returned for a null box.
func FitOrthographic(b pcd.AABB, aspect float32) mat.Mat4 {
	if b.IsNull() || !(aspect > 0) {
		return mat.Identity()
	}
	c, s := b.Center(), b.Size().Mul(0.5)
	w := s[0]
	if h := s[1] * aspect; h > w {
		w = h
	}
	if w == 0 {
		w = 1
	}
	h := w / aspect
	d := s[2]
	if d == 0 {
		d = 1
	}
	return mat.Orthographic(c[0]-w, c[0]+w, c[1]+h, c[1]-h, c[2]+d, c[2]-d)
}

// FitPerspective returns a view placing the bounding sphere of the box
// inside the frustum of the horizontal field of view fov.
func FitPerspective(b pcd.AABB, aspect, fov float32) mat.Mat4 {
	if b.IsNull() || !(aspect > 0) || !(fov > 0 && fov < math.Pi) {
		return mat.Identity()
	}
	c := b.Center()
	r := b.Size().Mul(0.5).Norm()
	if r == 0 {
		r = 1
	}
	dist := r / float32(math.Sin(float64(fov/2)))
	if aspect > 1 {
		dist *= aspect
	}
	proj := mat.Perspective(fov, aspect, dist-r, dist+r)
	return proj.Mul(mat.Translate(-c[0], -c[1], -c[2]-dist))
}
