package pcd

import (
	"github.com/pkg/errors"

	"github.com/seqsense/scancloud/mat"
)

type Point struct {
	Position mat.Vec3
	Normal   mat.Vec3
}

// PointCloud is an index addressable sequence of points with a bounding
// box kept consistent on every mutation.
// Zero value is an empty cloud.
type PointCloud struct {
	points     []Point
	bbox       AABB
	nObjects   int64
	nLabels    int64
	generation uint64
}

func New() *PointCloud {
	return &PointCloud{bbox: NullAABB()}
}

func NewWithCapacity(n int) *PointCloud {
	return &PointCloud{
		points: make([]Point, 0, n),
		bbox:   NullAABB(),
	}
}

func NewFromPoints(points []Point) *PointCloud {
	pc := NewWithCapacity(len(points))
	for _, p := range points {
		pc.AddPoint(p)
	}
	return pc
}

// NewFromVectors builds a cloud from parallel position and normal slices.
// nil normals are treated as zero vectors.
func NewFromVectors(positions, normals []mat.Vec3) (*PointCloud, error) {
	if normals != nil && len(normals) != len(positions) {
		return nil, errors.Wrapf(ErrOutOfRange,
			"%d positions and %d normals", len(positions), len(normals))
	}
	pc := NewWithCapacity(len(positions))
	for i, p := range positions {
		var n mat.Vec3
		if normals != nil {
			n = normals[i]
		}
		pc.AddPointVec(p, n)
	}
	return pc, nil
}

func (pc *PointCloud) NumPoints() int {
	return len(pc.points)
}

func (pc *PointCloud) IsEmpty() bool {
	return len(pc.points) == 0
}

// Clear removes all points. Object and label counts are kept.
func (pc *PointCloud) Clear() {
	pc.points = pc.points[:0]
	pc.bbox = NullAABB()
	pc.generation++
}

// Point returns i-th point. It panics if i is out of range.
func (pc *PointCloud) Point(i int) Point {
	return pc.points[i]
}

// Points returns underlying points. The slice must not be modified.
func (pc *PointCloud) Points() []Point {
	return pc.points
}

func (pc *PointCloud) AddPoint(p Point) {
	if len(pc.points) == 0 {
		pc.bbox = NullAABB()
	}
	pc.points = append(pc.points, p)
	pc.bbox.Merge(p.Position)
	pc.generation++
}

func (pc *PointCloud) AddPointVec(pos, normal mat.Vec3) {
	pc.AddPoint(Point{Position: pos, Normal: normal})
}

// SetNormal overwrites the normal of i-th point. It panics if i is out of range.
// Generation is kept since positions are unchanged.
func (pc *PointCloud) SetNormal(i int, n mat.Vec3) {
	pc.points[i].Normal = n
}

func (pc *PointCloud) AABB() AABB {
	if len(pc.points) == 0 {
		return NullAABB()
	}
	return pc.bbox
}

func (pc *PointCloud) RecomputeAABB() {
	pc.bbox = NullAABB()
	for _, p := range pc.points {
		pc.bbox.Merge(p.Position)
	}
}

func (pc *PointCloud) ObjectCount() int64 {
	return pc.nObjects
}

func (pc *PointCloud) LabelCount() int64 {
	return pc.nLabels
}

func (pc *PointCloud) SetSegmentCounts(objects, labels int64) {
	pc.nObjects, pc.nLabels = objects, labels
}

// Generation is incremented whenever positions or the number of points change.
func (pc *PointCloud) Generation() uint64 {
	return pc.generation
}

// Replace copies the whole state of src into pc.
func (pc *PointCloud) Replace(src *PointCloud) {
	pc.points = append(pc.points[:0], src.points...)
	pc.bbox = src.AABB()
	pc.nObjects, pc.nLabels = src.nObjects, src.nLabels
	pc.generation++
}

func (pc *PointCloud) Clone() *PointCloud {
	return &PointCloud{
		points:   append([]Point(nil), pc.points...),
		bbox:     pc.AABB(),
		nObjects: pc.nObjects,
		nLabels:  pc.nLabels,
	}
}

// Subset returns a new cloud holding the points at given indices in the given order.
func (pc *PointCloud) Subset(indices []int) *PointCloud {
	out := NewWithCapacity(len(indices))
	for _, i := range indices {
		out.AddPoint(pc.points[i])
	}
	out.nObjects, out.nLabels = pc.nObjects, pc.nLabels
	return out
}

func (pc *PointCloud) Positions() Vec3RandomAccessor {
	return positionAccessor(pc.points)
}

func (pc *PointCloud) Normals() Vec3RandomAccessor {
	return normalAccessor(pc.points)
}
