package format

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/seqsense/scancloud/pcd"
)

const (
	ismMagic      = "ISM_BIN"
	ismVersion    = 1
	ismHeaderSize = 32
	ismRecordSize = 32
)

var maxISMPoints = math.MaxInt32 / ismRecordSize

// ReadISM decodes a legacy ISM_BIN stream from r.
// Declared object and label counts must be max id + 1.
func ReadISM(r io.Reader) (*pcd.PointCloud, *pcd.Segmentation, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, &pcd.IOError{Op: "read", Err: err}
	}
	return decodeISM(b)
}

func decodeISM(b []byte) (*pcd.PointCloud, *pcd.Segmentation, error) {
	if len(b) < len(ismMagic)+1 || string(b[:len(ismMagic)]) != ismMagic {
		return nil, nil, errors.Wrap(pcd.ErrMalformedHeader, "ISM_BIN signature")
	}
	if v := b[len(ismMagic)]; v != ismVersion {
		return nil, nil, errors.Wrapf(pcd.ErrUnsupportedVersion, "ISM_BIN version %d", v)
	}
	if len(b) < ismHeaderSize {
		return nil, nil, errors.Wrap(pcd.ErrMalformedHeader, "short ISM_BIN header")
	}
	nPoints := int64(binary.LittleEndian.Uint64(b[8:16]))
	nObjects := int64(binary.LittleEndian.Uint64(b[16:24]))
	nLabels := int64(binary.LittleEndian.Uint64(b[24:32]))
	if nPoints < 0 || nObjects < 0 || nLabels < 0 ||
		nPoints > int64(maxISMPoints) {
		return nil, nil, errors.Wrapf(pcd.ErrMalformedHeader,
			"counts points=%d objects=%d labels=%d", nPoints, nObjects, nLabels)
	}

	body := b[ismHeaderSize:]
	if err := checkBodySize(len(body), int(nPoints)*ismRecordSize); err != nil {
		return nil, nil, err
	}

	n := int(nPoints)
	pc := pcd.NewWithCapacity(n)
	seg := &pcd.Segmentation{
		ObjectIDs:  make([]int32, n),
		LabelIDs:   make([]int32, n),
		NumObjects: nObjects,
		NumLabels:  nLabels,
	}
	for i := 0; i < n; i++ {
		rec := body[i*ismRecordSize:]
		pos, normal := decodeRecord(rec)
		obj := int32(binary.LittleEndian.Uint32(rec[24:28]))
		label := int32(binary.LittleEndian.Uint32(rec[28:32]))
		if obj < 0 || int64(obj) >= nObjects {
			return nil, nil, errors.Wrapf(pcd.ErrMalformedHeader,
				"object id %d of point %d out of [0, %d)", obj, i, nObjects)
		}
		if label < 0 || int64(label) >= nLabels {
			return nil, nil, errors.Wrapf(pcd.ErrMalformedHeader,
				"label id %d of point %d out of [0, %d)", label, i, nLabels)
		}
		pc.AddPointVec(pos, normal)
		seg.ObjectIDs[i] = obj
		seg.LabelIDs[i] = label
	}
	if objects, labels := seg.Counts(); objects != nObjects || labels != nLabels {
		return nil, nil, errors.Wrapf(pcd.ErrMalformedHeader,
			"declared counts objects=%d labels=%d, ids give %d %d", nObjects, nLabels, objects, labels)
	}
	pc.SetSegmentCounts(nObjects, nLabels)
	return pc, seg, nil
}

// WriteISM encodes pc and seg to w. Object and label counts are derived from the ids.
func WriteISM(w io.Writer, pc *pcd.PointCloud, seg *pcd.Segmentation) error {
	n := pc.NumPoints()
	if err := seg.Check(n); err != nil {
		return err
	}
	if n > maxISMPoints {
		return errors.Wrapf(pcd.ErrOutOfRange, "%d points exceed ISM_BIN limit %d", n, maxISMPoints)
	}
	nObjects, nLabels := seg.Counts()

	b := make([]byte, ismHeaderSize+n*ismRecordSize)
	copy(b, ismMagic)
	b[len(ismMagic)] = ismVersion
	binary.LittleEndian.PutUint64(b[8:16], uint64(n))
	binary.LittleEndian.PutUint64(b[16:24], uint64(nObjects))
	binary.LittleEndian.PutUint64(b[24:32], uint64(nLabels))
	for i, p := range pc.Points() {
		if seg.ObjectIDs[i] < 0 || seg.LabelIDs[i] < 0 {
			return errors.Wrapf(pcd.ErrOutOfRange,
				"negative id of point %d: object=%d label=%d", i, seg.ObjectIDs[i], seg.LabelIDs[i])
		}
		rec := b[ismHeaderSize+i*ismRecordSize:]
		encodeRecord(rec, p)
		binary.LittleEndian.PutUint32(rec[24:28], uint32(seg.ObjectIDs[i]))
		binary.LittleEndian.PutUint32(rec[28:32], uint32(seg.LabelIDs[i]))
	}
	_, err := w.Write(b)
	return err
}
