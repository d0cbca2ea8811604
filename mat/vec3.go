package mat

import (
	"math"
)

type Vec3 [3]float32

func NewVec3(x, y, z float32) Vec3 {
	return Vec3{x, y, z}
}

func (v Vec3) NormSq() float32 {
	return v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
}

func (v Vec3) Norm() float32 {
	return float32(math.Sqrt(float64(v.NormSq())))
}

// Normalized returns the unit vector of v.
// Zero vector is returned as is.
func (v Vec3) Normalized() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Mul(1.0 / n)
}

func (v Vec3) Mul(a float32) Vec3 {
	return Vec3{v[0] * a, v[1] * a, v[2] * a}
}

func (v Vec3) Sub(a Vec3) Vec3 {
	return Vec3{v[0] - a[0], v[1] - a[1], v[2] - a[2]}
}

func (v Vec3) Add(a Vec3) Vec3 {
	return Vec3{v[0] + a[0], v[1] + a[1], v[2] + a[2]}
}

func (v Vec3) Neg() Vec3 {
	return Vec3{-v[0], -v[1], -v[2]}
}

func (v Vec3) Dot(a Vec3) float32 {
	return v[0]*a[0] + v[1]*a[1] + v[2]*a[2]
}

func (v Vec3) Cross(a Vec3) Vec3 {
	return Vec3{
		v[1]*a[2] - v[2]*a[1],
		v[2]*a[0] - v[0]*a[2],
		v[0]*a[1] - v[1]*a[0],
	}
}

func (v Vec3) CrossNormSq(a Vec3) float32 {
	d := v.Dot(a)
	return v.NormSq()*a.NormSq() - d*d
}

func (v Vec3) ElementMul(a Vec3) Vec3 {
	return Vec3{v[0] * a[0], v[1] * a[1], v[2] * a[2]}
}

// DistSq returns squared euclidean distance between v and a.
// Computed in float64 to keep neighbor ordering stable for distant points.
func (v Vec3) DistSq(a Vec3) float64 {
	dx := float64(v[0]) - float64(a[0])
	dy := float64(v[1]) - float64(a[1])
	dz := float64(v[2]) - float64(a[2])
	return dx*dx + dy*dy + dz*dz
}

func (v Vec3) Min(a Vec3) Vec3 {
	out := v
	for i := range out {
		if a[i] < out[i] {
			out[i] = a[i]
		}
	}
	return out
}

func (v Vec3) Max(a Vec3) Vec3 {
	out := v
	for i := range out {
		if a[i] > out[i] {
			out[i] = a[i]
		}
	}
	return out
}

func (v Vec3) Equal(a Vec3) bool {
	const epsilon = 0.001
	for i := range v {
		d := v[i] - a[i]
		if d < -epsilon || epsilon < d {
			return false
		}
	}
	return true
}

func (v Vec3) IsZero() bool {
	return v[0] == 0 && v[1] == 0 && v[2] == 0
}
