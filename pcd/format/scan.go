package format

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
	"github.com/zhuyie/golzf"

	"github.com/seqsense/scancloud/mat"
	"github.com/seqsense/scancloud/pcd"
)

const (
	scanMagic         = "SCAN"
	scanVersionRaw    = 1
	scanVersionLZF    = 2
	scanHeaderSize    = 16
	scanLZFHeaderSize = 8
	scanRecordSize    = 24
)

// maxScanPoints is the largest cloud whose record bytes fit the 32-bit
// sizes of the compressed body header. Both reader and writer use it.
var maxScanPoints = math.MaxInt32 / scanRecordSize

// ReadScan decodes a scan file from r.
func ReadScan(r io.Reader) (*pcd.PointCloud, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, &pcd.IOError{Op: "read", Err: err}
	}
	return decodeScan(b)
}

func decodeScan(b []byte) (*pcd.PointCloud, error) {
	if len(b) < scanHeaderSize || string(b[:4]) != scanMagic {
		return nil, errors.Wrap(pcd.ErrMalformedHeader, "scan signature")
	}
	version := binary.LittleEndian.Uint32(b[4:8])
	count := binary.LittleEndian.Uint64(b[8:16])
	body := b[scanHeaderSize:]

	if count > uint64(maxScanPoints) {
		return nil, errors.Wrapf(pcd.ErrMalformedHeader, "point count %d", count)
	}
	size := int(count) * scanRecordSize

	switch version {
	case scanVersionRaw:
	case scanVersionLZF:
		if len(body) < scanLZFHeaderSize {
			return nil, errors.Wrap(pcd.ErrMalformedHeader, "compressed body header")
		}
		nCompressed := binary.LittleEndian.Uint32(body[0:4])
		nUncompressed := binary.LittleEndian.Uint32(body[4:8])
		body = body[scanLZFHeaderSize:]
		if int(nUncompressed) != size {
			return nil, errors.Wrapf(pcd.ErrMalformedHeader,
				"uncompressed size %d for %d points", nUncompressed, count)
		}
		switch {
		case uint64(len(body)) < uint64(nCompressed):
			return nil, errors.Wrapf(pcd.ErrTruncatedData,
				"%d bytes of %d compressed bytes", len(body), nCompressed)
		case uint64(len(body)) > uint64(nCompressed):
			return nil, errors.Wrapf(pcd.ErrMalformedHeader,
				"%d trailing bytes", uint64(len(body))-uint64(nCompressed))
		}
		if size > 0 {
			dec := make([]byte, size)
			n, err := lzf.Decompress(body, dec)
			if err != nil {
				return nil, errors.Wrapf(pcd.ErrTruncatedData, "decompress: %v", err)
			}
			if n != size {
				return nil, errors.Wrapf(pcd.ErrTruncatedData,
					"decompressed %d bytes, expected %d", n, size)
			}
			body = dec
		} else if len(body) != 0 {
			return nil, errors.Wrap(pcd.ErrMalformedHeader, "payload for empty cloud")
		}
	default:
		return nil, errors.Wrapf(pcd.ErrUnsupportedVersion, "scan version %d", version)
	}

	if err := checkBodySize(len(body), size); err != nil {
		return nil, err
	}

	pc := pcd.NewWithCapacity(int(count))
	for i := 0; i < int(count); i++ {
		pos, n := decodeRecord(body[i*scanRecordSize:])
		pc.AddPointVec(pos, n)
	}
	return pc, nil
}

func checkBodySize(actual, expected int) error {
	switch {
	case actual < expected:
		return errors.Wrapf(pcd.ErrTruncatedData, "%d bytes of %d record bytes", actual, expected)
	case actual > expected:
		return errors.Wrapf(pcd.ErrMalformedHeader, "%d trailing bytes", actual-expected)
	}
	return nil
}

func decodeRecord(b []byte) (pos, normal mat.Vec3) {
	for i := 0; i < 3; i++ {
		pos[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
		normal[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[12+i*4:]))
	}
	return
}

func encodeRecord(b []byte, p pcd.Point) {
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(p.Position[i]))
		binary.LittleEndian.PutUint32(b[12+i*4:], math.Float32bits(p.Normal[i]))
	}
}

// WriteScan encodes pc to w. Records are lzf compressed if compress is set.
func WriteScan(w io.Writer, pc *pcd.PointCloud, compress bool) error {
	n := pc.NumPoints()
	if n > maxScanPoints {
		return errors.Wrapf(pcd.ErrOutOfRange, "%d points exceed scan limit %d", n, maxScanPoints)
	}
	records := make([]byte, n*scanRecordSize)
	for i, p := range pc.Points() {
		encodeRecord(records[i*scanRecordSize:], p)
	}

	header := make([]byte, scanHeaderSize, scanHeaderSize+scanLZFHeaderSize)
	copy(header, scanMagic)
	binary.LittleEndian.PutUint64(header[8:16], uint64(n))

	if !compress {
		binary.LittleEndian.PutUint32(header[4:8], scanVersionRaw)
		if _, err := w.Write(header); err != nil {
			return err
		}
		_, err := w.Write(records)
		return err
	}

	binary.LittleEndian.PutUint32(header[4:8], scanVersionLZF)
	var compressed []byte
	if len(records) > 0 {
		// Incompressible input grows by at most 1 byte per 32 bytes.
		buf := make([]byte, len(records)+len(records)/32+16)
		nc, err := lzf.Compress(records, buf)
		if err != nil {
			return errors.Wrap(err, "compress")
		}
		compressed = buf[:nc]
	}
	header = header[:scanHeaderSize+scanLZFHeaderSize]
	binary.LittleEndian.PutUint32(header[16:20], uint32(len(compressed)))
	binary.LittleEndian.PutUint32(header[20:24], uint32(len(records)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(compressed)
	return err
}
