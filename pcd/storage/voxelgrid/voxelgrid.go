package voxelgrid

import (
	"math"

	"github.com/seqsense/scancloud/mat"
)

var neighborCursor [][3]int

func init() {
	for _, x := range []int{-1, 0, 1} {
		for _, y := range []int{-1, 0, 1} {
			for _, z := range []int{-1, 0, 1} {
				neighborCursor = append(neighborCursor, [3]int{x, y, z})
			}
		}
	}
}

// VoxelGrid is an unbounded sparse grid of cubic cells holding point indices.
type VoxelGrid struct {
	voxel         map[[3]int][]int
	origin        mat.Vec3
	resolutionInv float32
}

func New(resolution float32, origin mat.Vec3) *VoxelGrid {
	return &VoxelGrid{
		voxel:         make(map[[3]int][]int),
		origin:        origin,
		resolutionInv: 1 / resolution,
	}
}

func (v *VoxelGrid) Add(p mat.Vec3, index int) {
	pos := v.PosInt(p)
	v.voxel[pos] = append(v.voxel[pos], index)
}

func (v *VoxelGrid) Get(p mat.Vec3) []int {
	return v.voxel[v.PosInt(p)]
}

func (v *VoxelGrid) PosInt(p mat.Vec3) [3]int {
	pos := p.Sub(v.origin)
	return [3]int{
		int(math.Floor(float64(pos[0] * v.resolutionInv))),
		int(math.Floor(float64(pos[1] * v.resolutionInv))),
		int(math.Floor(float64(pos[2] * v.resolutionInv))),
	}
}

// Neighbors calls fn for every index stored in the cell of p and its 26 adjacent
// cells. Iteration stops when fn returns false.
func (v *VoxelGrid) Neighbors(p mat.Vec3, fn func(index int) bool) {
	pos := v.PosInt(p)
	for _, d := range neighborCursor {
		c := v.voxel[[3]int{pos[0] + d[0], pos[1] + d[1], pos[2] + d[2]}]
		for _, i := range c {
			if !fn(i) {
				return
			}
		}
	}
}

// Len returns the number of occupied cells.
func (v *VoxelGrid) Len() int {
	return len(v.voxel)
}
