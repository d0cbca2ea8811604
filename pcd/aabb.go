package pcd

import (
	"math"

	"github.com/seqsense/scancloud/mat"
)

// AABB is an axis aligned bounding box.
// Null box has Min greater than Max on every axis.
type AABB struct {
	Min, Max mat.Vec3
}

func NullAABB() AABB {
	return AABB{
		Min: mat.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		Max: mat.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
	}
}

func (b AABB) IsNull() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

func (b *AABB) Merge(v mat.Vec3) {
	b.Min = b.Min.Min(v)
	b.Max = b.Max.Max(v)
}

func (b AABB) Size() mat.Vec3 {
	if b.IsNull() {
		return mat.Vec3{}
	}
	return b.Max.Sub(b.Min)
}

func (b AABB) Center() mat.Vec3 {
	if b.IsNull() {
		return mat.Vec3{}
	}
	return b.Min.Add(b.Max).Mul(0.5)
}
