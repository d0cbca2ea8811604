package format

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"github.com/google/go-cmp/cmp"

	"github.com/seqsense/scancloud/mat"
	"github.com/seqsense/scancloud/pcd"
)

func testCloud() *pcd.PointCloud {
	pc := pcd.New()
	for i := 0; i < 50; i++ {
		f := float32(i)
		pc.AddPointVec(
			mat.Vec3{f * 0.1, -f * 0.25, float32(math.Sin(float64(f)))},
			mat.Vec3{0, float32(i % 2), 1 - float32(i%2)},
		)
	}
	return pc
}

func scanBytes(version uint32, count uint64, records []byte) []byte {
	b := make([]byte, 16)
	copy(b, "SCAN")
	binary.LittleEndian.PutUint32(b[4:8], version)
	binary.LittleEndian.PutUint64(b[8:16], count)
	return append(b, records...)
}

type ismPoint struct {
	pos    mat.Vec3
	object int32
	label  int32
}

func ismBytes(nObjects, nLabels int64, points []ismPoint) []byte {
	b := make([]byte, 32+32*len(points))
	copy(b, "ISM_BIN")
	b[7] = 1
	binary.LittleEndian.PutUint64(b[8:16], uint64(len(points)))
	binary.LittleEndian.PutUint64(b[16:24], uint64(nObjects))
	binary.LittleEndian.PutUint64(b[24:32], uint64(nLabels))
	for i, p := range points {
		rec := b[32+32*i:]
		for j := 0; j < 3; j++ {
			binary.LittleEndian.PutUint32(rec[j*4:], math.Float32bits(p.pos[j]))
		}
		binary.LittleEndian.PutUint32(rec[24:], uint32(p.object))
		binary.LittleEndian.PutUint32(rec[28:], uint32(p.label))
	}
	return b
}

func writeTestFile(t *testing.T, name string, b []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, b, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScanRoundTrip(t *testing.T) {
	testCases := map[string]struct {
		compress bool
		cloud    *pcd.PointCloud
	}{
		"Raw":             {false, testCloud()},
		"Compressed":      {true, testCloud()},
		"EmptyRaw":        {false, pcd.New()},
		"EmptyCompressed": {true, pcd.New()},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cloud.scan")
			if err := Save(tt.cloud, path,
				WithCompression(tt.compress), WithLogger(golog.NewTestLogger(t)),
			); err != nil {
				t.Fatal(err)
			}
			if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
				t.Error("Temporary file should be removed")
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if loaded.NumPoints() != tt.cloud.NumPoints() {
				t.Fatalf("Expected %d points, got: %d", tt.cloud.NumPoints(), loaded.NumPoints())
			}
			if diff := cmp.Diff(tt.cloud.Points(), loaded.Points()); diff != "" {
				t.Errorf("Unexpected points (-want +got):\n%s", diff)
			}
			if loaded.AABB() != tt.cloud.AABB() {
				t.Errorf("Expected bbox %v, got: %v", tt.cloud.AABB(), loaded.AABB())
			}
		})
	}
}

func TestScanCompressedIsSmaller(t *testing.T) {
	pc := pcd.New()
	for i := 0; i < 1000; i++ {
		pc.AddPointVec(mat.Vec3{1, 2, 3}, mat.Vec3{0, 0, 1})
	}
	var raw, compressed bytes.Buffer
	if err := WriteScan(&raw, pc, false); err != nil {
		t.Fatal(err)
	}
	if err := WriteScan(&compressed, pc, true); err != nil {
		t.Fatal(err)
	}
	if compressed.Len() >= raw.Len() {
		t.Errorf("Expected compressed size < %d, got: %d", raw.Len(), compressed.Len())
	}
	loaded, err := ReadScan(&compressed)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(pc.Points(), loaded.Points()); diff != "" {
		t.Errorf("Unexpected points (-want +got):\n%s", diff)
	}
}

func TestScanErrors(t *testing.T) {
	var valid bytes.Buffer
	if err := WriteScan(&valid, testCloud(), false); err != nil {
		t.Fatal(err)
	}
	var compressed bytes.Buffer
	if err := WriteScan(&compressed, testCloud(), true); err != nil {
		t.Fatal(err)
	}

	testCases := map[string]struct {
		data     []byte
		expected error
	}{
		"Empty":              {[]byte{}, pcd.ErrMalformedHeader},
		"ShortHeader":        {[]byte("SCAN\x01\x00"), pcd.ErrMalformedHeader},
		"BadMagic":           {append([]byte("NACS"), valid.Bytes()[4:]...), pcd.ErrMalformedHeader},
		"UnknownVersion":     {scanBytes(9, 0, nil), pcd.ErrUnsupportedVersion},
		"Truncated":          {scanBytes(1, 100, make([]byte, 10*24)), pcd.ErrTruncatedData},
		"Trailing":           {scanBytes(1, 1, make([]byte, 25)), pcd.ErrMalformedHeader},
		"HugeCount":          {scanBytes(1, math.MaxUint64, nil), pcd.ErrMalformedHeader},
		"CompressedTrunc":    {compressed.Bytes()[:compressed.Len()-5], pcd.ErrTruncatedData},
		"CompressedTrailing": {append(append([]byte{}, compressed.Bytes()...), 0), pcd.ErrMalformedHeader},
		"CompressedNoHeader": {scanBytes(2, 1, []byte{1, 2}), pcd.ErrMalformedHeader},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			_, err := ReadScan(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got: %v", tt.expected, err)
			}
		})
	}
}

func TestLoadInto_TruncatedKeepsCloud(t *testing.T) {
	path := writeTestFile(t, "truncated.scan", scanBytes(1, 100, make([]byte, 10*24)))

	pc := testCloud()
	before := pc.Clone()
	err := LoadInto(pc, path)
	if !errors.Is(err, pcd.ErrTruncatedData) {
		t.Fatalf("Expected %v, got: %v", pcd.ErrTruncatedData, err)
	}
	if diff := cmp.Diff(before.Points(), pc.Points()); diff != "" {
		t.Errorf("Cloud should be unchanged (-want +got):\n%s", diff)
	}
	if pc.AABB() != before.AABB() {
		t.Error("Bounding box should be unchanged")
	}
}

func TestLoadInto(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteScan(&buf, testCloud(), true); err != nil {
		t.Fatal(err)
	}
	path := writeTestFile(t, "cloud.scan", buf.Bytes())

	pc := pcd.New()
	pc.AddPointVec(mat.Vec3{100, 100, 100}, mat.Vec3{})
	if err := LoadInto(pc, path); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(testCloud().Points(), pc.Points()); diff != "" {
		t.Errorf("Unexpected points (-want +got):\n%s", diff)
	}
}

func TestLoad_Sniff(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteScan(&buf, testCloud(), false); err != nil {
		t.Fatal(err)
	}
	pc, err := Load(writeTestFile(t, "cloud.dat", buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if pc.NumPoints() != 50 {
		t.Errorf("Expected 50 points, got: %d", pc.NumPoints())
	}

	if _, err := Load(writeTestFile(t, "unknown.dat", []byte("hello world"))); !errors.Is(err, pcd.ErrMalformedHeader) {
		t.Errorf("Expected %v, got: %v", pcd.ErrMalformedHeader, err)
	}
}

func TestKindOf(t *testing.T) {
	testCases := map[string]Kind{
		"a.scan":     KindScan,
		"a/b/c.SCAN": KindScan,
		"a.ism":      KindISM,
		"a.bin":      KindISM,
		"a.pcd":      KindPCD,
		"a.ply":      KindUnknown,
		"noext":      KindUnknown,
	}
	for path, expected := range testCases {
		if k := KindOf(path); k != expected {
			t.Errorf("%s: expected %v, got: %v", path, expected, k)
		}
	}
}

func TestIOFailure(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.scan")); !errors.Is(err, pcd.ErrIOFailure) {
		t.Errorf("Expected %v, got: %v", pcd.ErrIOFailure, err)
	}
	err := Save(testCloud(), filepath.Join(dir, "no", "such", "dir.scan"))
	if !errors.Is(err, pcd.ErrIOFailure) {
		t.Errorf("Expected %v, got: %v", pcd.ErrIOFailure, err)
	}
	var ioErr *pcd.IOError
	if !errors.As(err, &ioErr) || ioErr.Op != "create" {
		t.Errorf("Expected create IOError, got: %v", err)
	}
}

func TestSave_UnsupportedFormat(t *testing.T) {
	err := Save(testCloud(), filepath.Join(t.TempDir(), "cloud.ply"))
	if !errors.Is(err, pcd.ErrUnsupportedFormat) {
		t.Errorf("Expected %v, got: %v", pcd.ErrUnsupportedFormat, err)
	}
}

func TestISM(t *testing.T) {
	points := []ismPoint{
		{mat.Vec3{0, 0, 0}, 0, 0},
		{mat.Vec3{1, 0, 0}, 0, 1},
		{mat.Vec3{0, 1, 0}, 1, 0},
		{mat.Vec3{0, 0, 1}, 1, 1},
	}
	path := writeTestFile(t, "scene.ism", ismBytes(2, 2, points))

	pc, seg, err := LoadISM(path, WithLogger(golog.NewTestLogger(t)))
	if err != nil {
		t.Fatal(err)
	}
	if pc.NumPoints() != 4 {
		t.Fatalf("Expected 4 points, got: %d", pc.NumPoints())
	}
	if pc.ObjectCount() != 2 || pc.LabelCount() != 2 {
		t.Errorf("Expected counts 2, 2, got: %d, %d", pc.ObjectCount(), pc.LabelCount())
	}
	if diff := cmp.Diff([]int32{0, 0, 1, 1}, seg.ObjectIDs); diff != "" {
		t.Errorf("Unexpected object ids (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int32{0, 1, 0, 1}, seg.LabelIDs); diff != "" {
		t.Errorf("Unexpected label ids (-want +got):\n%s", diff)
	}

	t.Run("RoundTrip", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "out.ism")
		if err := SaveISM(pc, seg, out); err != nil {
			t.Fatal(err)
		}
		pc2, seg2, err := LoadISM(out)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(pc.Points(), pc2.Points()); diff != "" {
			t.Errorf("Unexpected points (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(seg, seg2); diff != "" {
			t.Errorf("Unexpected segmentation (-want +got):\n%s", diff)
		}
	})
	t.Run("LoadDropsIDs", func(t *testing.T) {
		pc2, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if pc2.NumPoints() != 4 {
			t.Errorf("Expected 4 points, got: %d", pc2.NumPoints())
		}
	})
	t.Run("SaveRederivesCounts", func(t *testing.T) {
		stale := &pcd.Segmentation{
			ObjectIDs:  seg.ObjectIDs,
			LabelIDs:   []int32{0, 0, 0, 0},
			NumObjects: 10,
			NumLabels:  10,
		}
		var buf bytes.Buffer
		if err := WriteISM(&buf, pc, stale); err != nil {
			t.Fatal(err)
		}
		_, seg2, err := ReadISM(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if seg2.NumObjects != 2 || seg2.NumLabels != 1 {
			t.Errorf("Expected counts 2, 1, got: %d, %d", seg2.NumObjects, seg2.NumLabels)
		}
	})
	t.Run("MissingMetadata", func(t *testing.T) {
		err := SaveISM(pc, nil, filepath.Join(t.TempDir(), "out.ism"))
		if !errors.Is(err, pcd.ErrMissingMetadata) {
			t.Errorf("Expected %v, got: %v", pcd.ErrMissingMetadata, err)
		}
	})
}

func TestISMErrors(t *testing.T) {
	valid := ismBytes(1, 1, []ismPoint{{mat.Vec3{1, 2, 3}, 0, 0}})
	badVersion := append([]byte{}, valid...)
	badVersion[7] = 2

	testCases := map[string]struct {
		data     []byte
		expected error
	}{
		"ShortHeader":    {valid[:20], pcd.ErrMalformedHeader},
		"BadMagic":       {append([]byte("ISM_BIX"), valid[7:]...), pcd.ErrMalformedHeader},
		"UnknownVersion": {badVersion, pcd.ErrUnsupportedVersion},
		"Truncated":      {valid[:len(valid)-4], pcd.ErrTruncatedData},
		"Trailing":       {append(append([]byte{}, valid...), 0, 0), pcd.ErrMalformedHeader},
		"NegativeCount":  {ismBytes(-1, 1, nil), pcd.ErrMalformedHeader},
		"ObjectRange":    {ismBytes(1, 1, []ismPoint{{mat.Vec3{}, 1, 0}}), pcd.ErrMalformedHeader},
		"LabelRange":     {ismBytes(1, 1, []ismPoint{{mat.Vec3{}, 0, -1}}), pcd.ErrMalformedHeader},
		"ExcessObjects":  {ismBytes(3, 1, []ismPoint{{mat.Vec3{}, 0, 0}}), pcd.ErrMalformedHeader},
		"ExcessLabels":   {ismBytes(1, 2, []ismPoint{{mat.Vec3{}, 0, 0}}), pcd.ErrMalformedHeader},
		"EmptyWithCount": {ismBytes(1, 0, nil), pcd.ErrMalformedHeader},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			_, _, err := ReadISM(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got: %v", tt.expected, err)
			}
		})
	}
}

func TestPointLimit(t *testing.T) {
	scanLimit, ismLimit := maxScanPoints, maxISMPoints
	defer func() { maxScanPoints, maxISMPoints = scanLimit, ismLimit }()
	maxScanPoints, maxISMPoints = 3, 3

	pc := pcd.New()
	for i := 0; i < 4; i++ {
		pc.AddPointVec(mat.Vec3{float32(i), 0, 0}, mat.Vec3{})
	}
	seg := &pcd.Segmentation{
		ObjectIDs: make([]int32, 4),
		LabelIDs:  make([]int32, 4),
	}
	for _, compress := range []bool{false, true} {
		if err := WriteScan(&bytes.Buffer{}, pc, compress); !errors.Is(err, pcd.ErrOutOfRange) {
			t.Errorf("Expected %v writing scan (compress=%v), got: %v", pcd.ErrOutOfRange, compress, err)
		}
	}
	if err := WriteISM(&bytes.Buffer{}, pc, seg); !errors.Is(err, pcd.ErrOutOfRange) {
		t.Errorf("Expected %v writing ISM_BIN, got: %v", pcd.ErrOutOfRange, err)
	}

	// Anything the writer accepts is read back.
	sub := pc.Subset([]int{0, 1, 2})
	var buf bytes.Buffer
	if err := WriteScan(&buf, sub, true); err != nil {
		t.Fatal(err)
	}
	loaded, err := ReadScan(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.NumPoints() != 3 {
		t.Errorf("Expected 3 points, got: %d", loaded.NumPoints())
	}
	buf.Reset()
	if err := WriteISM(&buf, sub, seg.Subset([]int{0, 1, 2})); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadISM(&buf); err != nil {
		t.Fatal(err)
	}
}

func TestPCDRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud.pcd")
	if err := Save(testCloud(), path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(testCloud().Points(), loaded.Points()); diff != "" {
		t.Errorf("Unexpected points (-want +got):\n%s", diff)
	}
}
