// Package render draws point clouds to a render target. It never modifies the cloud.
package render

import (
	"github.com/seqsense/scancloud/mat"
	"github.com/seqsense/scancloud/pcd"
)

// Target receives vertex buffers. Positions are 3 floats and colors are
// 4 floats per vertex. Lines are given as vertex pairs.
type Target interface {
	DrawPoints(positions, colors []float32) error
	DrawLines(positions, colors []float32) error
}

type Options struct {
	// NormalLength is the length of drawn normal segments.
	// Normals are not drawn if negative.
	NormalLength float32
	Color        [4]float32
	// View transforms positions to the clip space. Zero value is treated as identity.
	View mat.Mat4
}

func DefaultOptions() Options {
	return Options{
		NormalLength: -1,
		Color:        [4]float32{1, 1, 1, 1},
		View:         mat.Identity(),
	}
}

// Buffers holds vertex data built from a point cloud.
type Buffers struct {
	Points      []float32
	PointColors []float32
	Lines       []float32
	LineColors  []float32
}

// Build transforms the cloud into vertex buffers.
func Build(pc *pcd.PointCloud, opts Options) *Buffers {
	view := opts.View
	if view == (mat.Mat4{}) {
		view = mat.Identity()
	}
	n := pc.NumPoints()
	b := &Buffers{
		Points:      make([]float32, 0, 3*n),
		PointColors: make([]float32, 0, 4*n),
	}
	drawNormals := opts.NormalLength >= 0
	if drawNormals {
		b.Lines = make([]float32, 0, 6*n)
		b.LineColors = make([]float32, 0, 8*n)
	}
	for _, p := range pc.Points() {
		v := view.Transform(p.Position)
		b.Points = append(b.Points, v[:]...)
		b.PointColors = append(b.PointColors, opts.Color[:]...)

		if !drawNormals || p.Normal.IsZero() {
			continue
		}
		e := view.Transform(p.Position.Add(p.Normal.Mul(opts.NormalLength)))
		b.Lines = append(b.Lines, v[:]...)
		b.Lines = append(b.Lines, e[:]...)
		b.LineColors = append(b.LineColors, opts.Color[:]...)
		b.LineColors = append(b.LineColors, opts.Color[:]...)
	}
	return b
}

// Draw renders points of pc and, if NormalLength is not negative, their normals.
func Draw(t Target, pc *pcd.PointCloud, opts Options) error {
	if pc.IsEmpty() {
		return nil
	}
	b := Build(pc, opts)
	if err := t.DrawPoints(b.Points, b.PointColors); err != nil {
		return err
	}
	if opts.NormalLength >= 0 && len(b.Lines) > 0 {
		return t.DrawLines(b.Lines, b.LineColors)
	}
	return nil
}
