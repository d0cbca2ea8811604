package format

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
	"github.com/seqsense/pcgol/pc"

	"github.com/seqsense/scancloud/mat"
	"github.com/seqsense/scancloud/pcd"
)

var (
	pcdPointFields  = []string{"x", "y", "z", "normal_x", "normal_y", "normal_z"}
	pcdNormalFields = []string{"normal_x", "normal_y", "normal_z"}
)

// ReadPCD decodes a PCD stream. Normals are loaded when normal_x, normal_y
// and normal_z fields are present.
func ReadPCD(r io.Reader) (*pcd.PointCloud, error) {
	pp, err := pc.Unmarshal(r)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, errors.Wrapf(pcd.ErrTruncatedData, "pcd: %v", err)
		}
		return nil, errors.Wrapf(pcd.ErrMalformedHeader, "pcd: %v", err)
	}
	if len(pp.Data) < pp.Points*pp.Stride() {
		return nil, errors.Wrapf(pcd.ErrTruncatedData,
			"pcd: %d bytes for %d points", len(pp.Data), pp.Points)
	}
	it, err := pp.Vec3Iterator()
	if err != nil {
		return nil, errors.Wrapf(pcd.ErrMalformedHeader, "pcd: %v", err)
	}

	var nits []pc.Float32Iterator
	if hasFields(pp, pcdNormalFields...) {
		for _, name := range pcdNormalFields {
			nit, err := pp.Float32Iterator(name)
			if err != nil {
				return nil, errors.Wrapf(pcd.ErrMalformedHeader, "pcd: %v", err)
			}
			nits = append(nits, nit)
		}
	}

	out := pcd.NewWithCapacity(pp.Points)
	for i := 0; i < pp.Points; i++ {
		var n mat.Vec3
		for j, nit := range nits {
			n[j] = nit.Float32()
			nit.Incr()
		}
		out.AddPointVec(mat.Vec3(it.Vec3()), n)
		it.Incr()
	}
	return out, nil
}

func hasFields(pp *pc.PointCloud, names ...string) bool {
L_NAMES:
	for _, name := range names {
		for _, f := range pp.Fields {
			if f == name {
				continue L_NAMES
			}
		}
		return false
	}
	return true
}

// WritePCD encodes positions and normals of pc as a binary PCD.
func WritePCD(w io.Writer, src *pcd.PointCloud) error {
	return WriteFloat32PCD(w, pcdPointFields, src.NumPoints(), func(i int, row []float32) {
		p := src.Point(i)
		copy(row[0:3], p.Position[:])
		copy(row[3:6], p.Normal[:])
	})
}

// WriteFloat32PCD writes n points having float32 fields of given names.
// fill stores the values of i-th point to row.
func WriteFloat32PCD(w io.Writer, names []string, n int, fill func(i int, row []float32)) error {
	nf := len(names)
	pp := &pc.PointCloud{
		PointCloudHeader: pc.PointCloudHeader{
			Version:   0.7,
			Fields:    append([]string{}, names...),
			Size:      make([]int, nf),
			Type:      make([]string, nf),
			Count:     make([]int, nf),
			Width:     n,
			Height:    1,
			Viewpoint: []float32{0, 0, 0, 1, 0, 0, 0},
		},
		Points: n,
	}
	for i := range names {
		pp.Size[i] = 4
		pp.Type[i] = "F"
		pp.Count[i] = 1
	}
	stride := 4 * nf
	pp.Data = make([]byte, n*stride)
	row := make([]float32, nf)
	for i := 0; i < n; i++ {
		fill(i, row)
		for j, v := range row {
			binary.LittleEndian.PutUint32(pp.Data[i*stride+j*4:], math.Float32bits(v))
		}
	}
	return pc.Marshal(pp, w)
}
