// Package normal estimates per-point normals from local neighborhoods.
package normal

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/seqsense/scancloud/mat"
	"github.com/seqsense/scancloud/pcd"
	"github.com/seqsense/scancloud/pcd/feature"
	"github.com/seqsense/scancloud/pcd/storage/kdtree"
)

// Orientation is the policy deciding the sign of estimated normals.
type Orientation int

const (
	// OrientMST propagates the sign along a minimum spanning forest of the
	// neighborhood graph so that adjacent normals agree. Each connected
	// component is seeded at its highest point with a normal facing +z.
	OrientMST Orientation = iota
	// OrientNone keeps the sign returned by the eigen solver.
	OrientNone
	// OrientViewpoint flips normals to face the viewpoint.
	OrientViewpoint
)

func (o Orientation) String() string {
	switch o {
	case OrientMST:
		return "mst"
	case OrientNone:
		return "none"
	case OrientViewpoint:
		return "viewpoint"
	}
	return "unknown"
}

func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(s) {
	case "mst", "":
		return OrientMST, nil
	case "none":
		return OrientNone, nil
	case "viewpoint":
		return OrientViewpoint, nil
	}
	return 0, errors.Errorf("unknown orientation %q", s)
}

type Options struct {
	feature.Options
	Orientation Orientation
	Viewpoint   mat.Vec3
}

func DefaultOptions() Options {
	return Options{
		Options:     feature.DefaultOptions(),
		Orientation: OrientMST,
	}
}

type Estimator struct {
	Options
}

func New(opts Options) *Estimator {
	return &Estimator{Options: opts}
}

type Report struct {
	Degenerate int
	// Components is the number of trees in the orientation forest.
	Components int
}

// Estimate overwrites the normal of every point of pc.
// Points with degenerate neighborhoods get zero normals. If all points are
// degenerate, normals are zeroed and ErrDegenerateNeighborhood is returned.
// kdt may be nil or stale, a new index is built in that case.
func (e *Estimator) Estimate(pc *pcd.PointCloud, kdt *kdtree.KDTree) (*Report, error) {
	fopts := e.Options.Options
	if err := fopts.Validate(pc.NumPoints()); err != nil {
		return nil, err
	}
	kdt = feature.Index(pc, kdt)
	ds, err := feature.Analyze(pc, kdt, fopts)
	if err != nil {
		return nil, err
	}

	n := len(ds)
	normals := make([]mat.Vec3, n)
	for i := range ds {
		normals[i] = ds[i].Normal
	}
	report := &Report{Degenerate: feature.CountDegenerate(ds)}

	if report.Degenerate < n {
		switch e.Orientation {
		case OrientNone:
		case OrientViewpoint:
			orientViewpoint(pc, normals, e.Viewpoint)
		case OrientMST:
			c, err := orientMST(pc, kdt, normals, fopts.K)
			if err != nil {
				return nil, err
			}
			report.Components = c
		default:
			return nil, errors.Errorf("unknown orientation %d", e.Orientation)
		}
	}

	for i, nv := range normals {
		pc.SetNormal(i, nv)
	}
	if fopts.Logger != nil {
		fopts.Logger.Debugw("normals estimated",
			"points", n, "degenerate", report.Degenerate,
			"orientation", e.Orientation, "components", report.Components,
		)
	}
	if report.Degenerate == n {
		return report, errors.Wrapf(pcd.ErrDegenerateNeighborhood, "all %d points", n)
	}
	return report, nil
}

func orientViewpoint(pc *pcd.PointCloud, normals []mat.Vec3, vp mat.Vec3) {
	for i, nv := range normals {
		if nv.Dot(vp.Sub(pc.Point(i).Position)) < 0 {
			normals[i] = nv.Neg()
		}
	}
}
