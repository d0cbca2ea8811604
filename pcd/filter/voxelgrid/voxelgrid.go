package voxelgrid

import (
	"github.com/pkg/errors"

	"github.com/seqsense/scancloud/pcd"
	"github.com/seqsense/scancloud/pcd/filter"
	storage "github.com/seqsense/scancloud/pcd/storage/voxelgrid"
)

type Options struct {
	LeafSize float32
}

type voxelGrid struct {
	Options
}

// New returns a uniform sampler keeping the first point of each occupied voxel.
func New(leafSize float32) filter.Sampler {
	return &voxelGrid{
		Options: Options{
			LeafSize: leafSize,
		},
	}
}

func (f *voxelGrid) Sample(pc *pcd.PointCloud) ([]int, error) {
	if !(f.LeafSize > 0) {
		return nil, errors.Wrapf(pcd.ErrOutOfRange, "leaf size %v", f.LeafSize)
	}
	if pc.IsEmpty() {
		return nil, nil
	}
	vg := storage.New(f.LeafSize, pc.AABB().Min)

	kept := make([]int, 0, pc.NumPoints()/4)
	for i, p := range pc.Points() {
		if len(vg.Get(p.Position)) == 0 {
			kept = append(kept, i)
		}
		vg.Add(p.Position, i)
	}
	return kept, nil
}

func (f *voxelGrid) Filter(pc *pcd.PointCloud) (*pcd.PointCloud, error) {
	kept, err := f.Sample(pc)
	if err != nil {
		return nil, err
	}
	return pc.Subset(kept), nil
}
