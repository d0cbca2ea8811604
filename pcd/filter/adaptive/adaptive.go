// Package adaptive implements curvature adaptive point preserving downsampling.
package adaptive

import (
	"sort"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/seqsense/scancloud/pcd"
	"github.com/seqsense/scancloud/pcd/feature"
	"github.com/seqsense/scancloud/pcd/filter"
	"github.com/seqsense/scancloud/pcd/storage/kdtree"
	storage "github.com/seqsense/scancloud/pcd/storage/voxelgrid"
)

// MaxCurvatureThreshold is the upper bound of the surface variation.
const MaxCurvatureThreshold = 1.0 / 3

type Options struct {
	K                  int
	CurvatureThreshold float32
	Radius             float32
	Workers            int
	Logger             golog.Logger
}

func DefaultOptions() Options {
	return Options{
		K:                  feature.DefaultK,
		CurvatureThreshold: 0.02,
		Radius:             0.05,
	}
}

func (o Options) Validate() error {
	if o.K < 2 {
		return errors.Wrapf(pcd.ErrOutOfRange, "k=%d must be >= 2", o.K)
	}
	if !(o.CurvatureThreshold >= 0 && o.CurvatureThreshold <= MaxCurvatureThreshold) {
		return errors.Wrapf(pcd.ErrOutOfRange,
			"curvature threshold %v out of [0, 1/3]", o.CurvatureThreshold)
	}
	if !(o.Radius > 0) {
		return errors.Wrapf(pcd.ErrOutOfRange, "radius %v must be positive", o.Radius)
	}
	return nil
}

// Sampler removes points in flat regions while keeping high curvature points.
// Every removed point lies within Radius of a kept point.
type Sampler struct {
	Options
	kdt *kdtree.KDTree
}

func New(opts Options) filter.Sampler {
	return &Sampler{Options: opts}
}

// NewWithIndex returns a Sampler using prebuilt index while it is up to date.
func NewWithIndex(opts Options, kdt *kdtree.KDTree) *Sampler {
	return &Sampler{Options: opts, kdt: kdt}
}

func (s *Sampler) logger() golog.Logger {
	if s.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return s.Logger
}

// Sample returns indices of kept points in ascending order.
func (s *Sampler) Sample(pc *pcd.PointCloud) ([]int, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	n := pc.NumPoints()
	if n < s.K+1 {
		kept := make([]int, n)
		for i := range kept {
			kept[i] = i
		}
		return kept, nil
	}

	ds, err := feature.Analyze(pc, s.kdt, feature.Options{
		K:       s.K,
		Workers: s.Workers,
		Logger:  s.Logger,
	})
	if err != nil {
		return nil, err
	}

	keep := make([]bool, n)
	vg := storage.New(s.Radius, pc.AABB().Min)
	var candidates []int
	for i := range ds {
		if ds[i].Degenerate || ds[i].Curvature >= s.CurvatureThreshold {
			keep[i] = true
			vg.Add(pc.Point(i).Position, i)
			continue
		}
		candidates = append(candidates, i)
	}
	nAnchors := n - len(candidates)

	sort.Slice(candidates, func(a, b int) bool {
		ia, ib := candidates[a], candidates[b]
		if ds[ia].Curvature != ds[ib].Curvature {
			return ds[ia].Curvature < ds[ib].Curvature
		}
		return ia < ib
	})

	rsq := float64(s.Radius) * float64(s.Radius)
	for _, i := range candidates {
		p := pc.Point(i).Position
		covered := false
		vg.Neighbors(p, func(j int) bool {
			if p.DistSq(pc.Point(j).Position) <= rsq {
				covered = true
				return false
			}
			return true
		})
		if !covered {
			keep[i] = true
			vg.Add(p, i)
		}
	}

	kept := make([]int, 0, n)
	for i, k := range keep {
		if k {
			kept = append(kept, i)
		}
	}
	s.logger().Debugw("adaptive sampling",
		"input", n, "output", len(kept), "anchors", nAnchors,
		"threshold", s.CurvatureThreshold, "radius", s.Radius,
	)
	return kept, nil
}

// Filter returns a new cloud holding the kept points in the original order.
func (s *Sampler) Filter(pc *pcd.PointCloud) (*pcd.PointCloud, error) {
	kept, err := s.Sample(pc)
	if err != nil {
		return nil, err
	}
	return pc.Subset(kept), nil
}
