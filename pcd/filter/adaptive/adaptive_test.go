package adaptive

import (
	"errors"
	"math"
	"testing"

	"github.com/edaniels/golog"
	"github.com/google/go-cmp/cmp"

	"github.com/seqsense/scancloud/mat"
	"github.com/seqsense/scancloud/pcd"
	"github.com/seqsense/scancloud/pcd/feature"
)

// lShape returns two perpendicular planes sharing an edge along the y axis.
func lShape(n int, spacing float32) *pcd.PointCloud {
	pc := pcd.New()
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			pc.AddPointVec(mat.Vec3{float32(x) * spacing, float32(y) * spacing, 0}, mat.Vec3{0, 0, 1})
		}
		for z := 1; z < n; z++ {
			pc.AddPointVec(mat.Vec3{0, float32(y) * spacing, float32(z) * spacing}, mat.Vec3{1, 0, 0})
		}
	}
	return pc
}

func testOptions(t *testing.T) Options {
	return Options{
		K:                  8,
		CurvatureThreshold: 0.02,
		Radius:             0.05,
		Logger:             golog.NewTestLogger(t),
	}
}

func TestSample(t *testing.T) {
	pc := lShape(20, 0.01)
	opts := testOptions(t)

	kept, err := New(opts).Sample(pc)
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) == 0 || len(kept) >= pc.NumPoints() {
		t.Fatalf("Expected reduced cloud, got %d of %d points", len(kept), pc.NumPoints())
	}

	isKept := make([]bool, pc.NumPoints())
	for i, k := range kept {
		if i > 0 && kept[i-1] >= k {
			t.Fatalf("Indices should be ascending: %v", kept)
		}
		isKept[k] = true
	}

	rsq := float64(opts.Radius) * float64(opts.Radius)
	for i, p := range pc.Points() {
		if isKept[i] {
			continue
		}
		covered := false
		for _, k := range kept {
			if p.Position.DistSq(pc.Point(k).Position) <= rsq {
				covered = true
				break
			}
		}
		if !covered {
			t.Errorf("Removed point %d has no kept point within radius", i)
		}
	}

	ds, err := feature.Analyze(pc, nil, feature.Options{K: opts.K})
	if err != nil {
		t.Fatal(err)
	}
	var anchors int
	for i, d := range ds {
		if d.Curvature >= opts.CurvatureThreshold || d.Degenerate {
			anchors++
			if !isKept[i] {
				t.Errorf("High curvature point %d (%v) should be kept", i, d.Curvature)
			}
		}
	}
	if anchors == 0 {
		t.Error("Test data should have high curvature points along the edge")
	}
}

func TestFilter(t *testing.T) {
	pc := lShape(12, 0.01)
	before := pc.Clone()

	out, err := New(testOptions(t)).Filter(pc)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before.Points(), pc.Points()); diff != "" {
		t.Errorf("Input should not be modified (-want +got):\n%s", diff)
	}
	if out.NumPoints() > pc.NumPoints() {
		t.Fatalf("Output has more points than input: %d > %d", out.NumPoints(), pc.NumPoints())
	}

	// Every output point exists in the input in the same order.
	j := 0
	for _, p := range out.Points() {
		for j < pc.NumPoints() && pc.Point(j) != p {
			j++
		}
		if j == pc.NumPoints() {
			t.Fatalf("Output point %v does not exist in the input order", p)
		}
		j++
	}
}

func TestSample_Deterministic(t *testing.T) {
	pc := lShape(15, 0.01)
	opts := testOptions(t)
	opts.Workers = 1
	a, err := New(opts).Sample(pc)
	if err != nil {
		t.Fatal(err)
	}
	opts.Workers = 4
	b, err := New(opts).Sample(pc)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Result should be deterministic (-want +got):\n%s", diff)
	}
}

func TestSample_ZeroThresholdKeepsAll(t *testing.T) {
	pc := lShape(10, 0.01)
	opts := testOptions(t)
	opts.CurvatureThreshold = 0

	kept, err := New(opts).Sample(pc)
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != pc.NumPoints() {
		t.Errorf("Expected all %d points kept, got: %d", pc.NumPoints(), len(kept))
	}
}

func TestSample_MaxThreshold(t *testing.T) {
	pc := pcd.New()
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			pc.AddPointVec(mat.Vec3{float32(x) * 0.01, float32(y) * 0.01, 0}, mat.Vec3{})
		}
	}
	opts := testOptions(t)
	opts.CurvatureThreshold = MaxCurvatureThreshold
	opts.Radius = 0.5

	kept, err := New(opts).Sample(pc)
	if err != nil {
		t.Fatal(err)
	}
	// Bounding box diagonal is shorter than the radius.
	if len(kept) != 1 {
		t.Errorf("Expected a single kept point, got: %d", len(kept))
	}
}

func TestSample_SmallCloud(t *testing.T) {
	testCases := map[string]int{
		"Empty": 0,
		"Tiny":  5,
	}
	for name, n := range testCases {
		n := n
		t.Run(name, func(t *testing.T) {
			pc := pcd.New()
			for i := 0; i < n; i++ {
				pc.AddPointVec(mat.Vec3{float32(i), 0, 0}, mat.Vec3{})
			}
			out, err := New(testOptions(t)).Filter(pc)
			if err != nil {
				t.Fatal(err)
			}
			if out.NumPoints() != n {
				t.Errorf("Expected %d points, got: %d", n, out.NumPoints())
			}
		})
	}
}

func TestSample_InvalidOptions(t *testing.T) {
	pc := lShape(5, 0.1)
	testCases := map[string]func(*Options){
		"SmallK":            func(o *Options) { o.K = 1 },
		"NegativeThreshold": func(o *Options) { o.CurvatureThreshold = -0.1 },
		"LargeThreshold":    func(o *Options) { o.CurvatureThreshold = 0.5 },
		"NaNThreshold":      func(o *Options) { o.CurvatureThreshold = float32(math.NaN()) },
		"ZeroRadius":        func(o *Options) { o.Radius = 0 },
		"NegativeRadius":    func(o *Options) { o.Radius = -1 },
	}
	for name, mod := range testCases {
		mod := mod
		t.Run(name, func(t *testing.T) {
			opts := testOptions(t)
			mod(&opts)
			if _, err := New(opts).Sample(pc); !errors.Is(err, pcd.ErrOutOfRange) {
				t.Errorf("Expected %v, got: %v", pcd.ErrOutOfRange, err)
			}
		})
	}
}
