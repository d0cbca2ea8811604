package feature

import (
	"io"

	"github.com/seqsense/scancloud/pcd"
	"github.com/seqsense/scancloud/pcd/format"
)

// Fields are the names of the exported PCD fields.
var Fields = []string{"x", "y", "z", "curvature", "linearity", "planarity", "scattering", "density"}

// WriteFeatures writes positions and descriptors as a binary PCD.
func WriteFeatures(w io.Writer, pc *pcd.PointCloud, ds []Descriptor) error {
	return format.WriteFloat32PCD(w, Fields, pc.NumPoints(), func(i int, row []float32) {
		p := pc.Point(i).Position
		d := &ds[i]
		row[0], row[1], row[2] = p[0], p[1], p[2]
		row[3] = d.Curvature
		row[4] = d.Linearity
		row[5] = d.Planarity
		row[6] = d.Scattering
		row[7] = d.Density
	})
}

// SaveFeatures analyzes pc and writes the per-point descriptors to path.
// pc is not modified.
func SaveFeatures(pc *pcd.PointCloud, path string, opts Options) error {
	ds, err := Analyze(pc, nil, opts)
	if err != nil {
		return err
	}
	if err := format.WriteFileAtomic(path, func(w io.Writer) error {
		return WriteFeatures(w, pc, ds)
	}); err != nil {
		return err
	}
	if opts.Logger != nil {
		opts.Logger.Infow("features saved", "path", path, "points", pc.NumPoints())
	}
	return nil
}
