package pcd

import (
	"github.com/seqsense/scancloud/mat"
)

type Vec3RandomAccessor interface {
	Vec3At(int) mat.Vec3
	Len() int
}

type Vec3Slice []mat.Vec3

func (s Vec3Slice) Vec3At(i int) mat.Vec3 {
	return s[i]
}

func (s Vec3Slice) Len() int {
	return len(s)
}

type positionAccessor []Point

func (a positionAccessor) Vec3At(i int) mat.Vec3 {
	return a[i].Position
}

func (a positionAccessor) Len() int {
	return len(a)
}

type normalAccessor []Point

func (a normalAccessor) Vec3At(i int) mat.Vec3 {
	return a[i].Normal
}

func (a normalAccessor) Len() int {
	return len(a)
}
