// Package feature computes local shape descriptors from k-nearest neighborhoods.
package feature

import (
	"math"
	"runtime"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	vec "github.com/seqsense/scancloud/mat"
	"github.com/seqsense/scancloud/pcd"
	"github.com/seqsense/scancloud/pcd/storage/kdtree"
)

const (
	DefaultK       = 16
	DefaultEpsilon = 1e-6
)

// Descriptor is the result of the principal component analysis of a neighborhood.
// Eigenvalues are in ascending order.
type Descriptor struct {
	Normal      vec.Vec3
	Eigenvalues [3]float64

	// Curvature is the surface variation l0/(l0+l1+l2), in [0, 1/3].
	Curvature  float32
	Linearity  float32
	Planarity  float32
	Scattering float32
	// Density is the mean distance to the neighbors.
	Density float32

	// Degenerate is set when the neighborhood is collinear or coincident.
	// Normal is zero in that case.
	Degenerate bool
}

type Options struct {
	K int
	// Epsilon is the ratio l1/l2 under which a neighborhood is degenerate.
	Epsilon float64
	// Workers is the number of goroutines. GOMAXPROCS is used if zero.
	Workers int
	Logger  golog.Logger
}

func DefaultOptions() Options {
	return Options{
		K:       DefaultK,
		Epsilon: DefaultEpsilon,
	}
}

func (o *Options) fill() {
	if o.Epsilon <= 0 {
		o.Epsilon = DefaultEpsilon
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
}

// Validate checks the neighborhood size against the number of points.
func (o Options) Validate(numPoints int) error {
	if o.K < 2 {
		return errors.Wrapf(pcd.ErrOutOfRange, "k=%d must be >= 2", o.K)
	}
	if numPoints < o.K+1 {
		return errors.Wrapf(pcd.ErrOutOfRange, "%d points for k=%d", numPoints, o.K)
	}
	return nil
}

// Index returns kdt if it is up to date with pc, otherwise builds a new one.
func Index(pc *pcd.PointCloud, kdt *kdtree.KDTree) *kdtree.KDTree {
	if kdt == nil || kdt.Stale(pc) {
		return kdtree.NewFromCloud(pc)
	}
	return kdt
}

// Analyze computes the descriptor of every point from its K+1 nearest
// neighbors, the point itself included.
// kdt may be nil or stale, a new index is built in that case.
func Analyze(pc *pcd.PointCloud, kdt *kdtree.KDTree, opts Options) ([]Descriptor, error) {
	n := pc.NumPoints()
	if err := opts.Validate(n); err != nil {
		return nil, err
	}
	opts.fill()
	kdt = Index(pc, kdt)

	out := make([]Descriptor, n)
	chunk := (n + opts.Workers - 1) / opts.Workers

	var g errgroup.Group
	for begin := 0; begin < n; begin += chunk {
		begin, end := begin, begin+chunk
		if end > n {
			end = n
		}
		g.Go(func() error {
			neighbors := make([]vec.Vec3, 0, opts.K+1)
			for i := begin; i < end; i++ {
				p := pc.Point(i).Position
				nn, err := kdt.Nearest(p, opts.K+1)
				if err != nil {
					return err
				}
				neighbors = neighbors[:0]
				var dist float64
				var nDist int
				for _, nb := range nn {
					neighbors = append(neighbors, pc.Point(nb.Index).Position)
					if nb.Index != i {
						dist += math.Sqrt(nb.DistSq)
						nDist++
					}
				}
				d := Compute(neighbors, opts.Epsilon)
				if nDist > 0 {
					d.Density = float32(dist / float64(nDist))
				}
				out[i] = d
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	opts.Logger.Debugw("analyzed neighborhoods",
		"points", n, "k", opts.K, "workers", opts.Workers, "degenerate", CountDegenerate(out))
	return out, nil
}

// Compute runs the principal component analysis over the given positions.
func Compute(points []vec.Vec3, epsilon float64) Descriptor {
	if len(points) < 3 {
		return Descriptor{Degenerate: true}
	}
	var c [3]float64
	for _, p := range points {
		for j := range c {
			c[j] += float64(p[j])
		}
	}
	inv := 1 / float64(len(points))
	for j := range c {
		c[j] *= inv
	}

	var xx, xy, xz, yy, yz, zz float64
	for _, p := range points {
		dx, dy, dz := float64(p[0])-c[0], float64(p[1])-c[1], float64(p[2])-c[2]
		xx += dx * dx
		xy += dx * dy
		xz += dx * dz
		yy += dy * dy
		yz += dy * dz
		zz += dz * dz
	}
	cov := mat.NewSymDense(3, []float64{
		xx * inv, xy * inv, xz * inv,
		xy * inv, yy * inv, yz * inv,
		xz * inv, yz * inv, zz * inv,
	})

	var eigen mat.EigenSym
	if ok := eigen.Factorize(cov, true); !ok {
		return Descriptor{Degenerate: true}
	}
	vals := eigen.Values(nil)
	var d Descriptor
	for j := range d.Eigenvalues {
		// Round-off can produce tiny negative values.
		d.Eigenvalues[j] = math.Max(vals[j], 0)
	}
	l0, l1, l2 := d.Eigenvalues[0], d.Eigenvalues[1], d.Eigenvalues[2]
	if sum := l0 + l1 + l2; sum > 0 {
		d.Curvature = float32(l0 / sum)
	}
	if l2 > 0 {
		d.Linearity = float32((l2 - l1) / l2)
		d.Planarity = float32((l1 - l0) / l2)
		d.Scattering = float32(l0 / l2)
	}
	if l1 <= epsilon*l2 {
		d.Degenerate = true
		return d
	}

	var vecs mat.Dense
	eigen.VectorsTo(&vecs)
	d.Normal = vec.Vec3{
		float32(vecs.At(0, 0)),
		float32(vecs.At(1, 0)),
		float32(vecs.At(2, 0)),
	}.Normalized()
	return d
}

func CountDegenerate(ds []Descriptor) int {
	var n int
	for i := range ds {
		if ds[i].Degenerate {
			n++
		}
	}
	return n
}
