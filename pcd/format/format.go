// Package format reads and writes point clouds in the scan, ISM_BIN and PCD formats.
package format

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/seqsense/scancloud/pcd"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindScan
	KindISM
	KindPCD
)

func (k Kind) String() string {
	switch k {
	case KindScan:
		return "scan"
	case KindISM:
		return "ism"
	case KindPCD:
		return "pcd"
	}
	return "unknown"
}

type options struct {
	compress bool
	logger   golog.Logger
}

type Option func(*options)

// WithCompression selects lzf compressed scan records on save.
func WithCompression(c bool) Option {
	return func(o *options) {
		o.compress = c
	}
}

func WithLogger(l golog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(opts []Option) *options {
	o := &options{logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// KindOf returns the format selected by the file extension.
func KindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".scan":
		return KindScan
	case ".ism", ".bin":
		return KindISM
	case ".pcd":
		return KindPCD
	}
	return KindUnknown
}

// Sniff detects the format from the leading bytes of a file.
func Sniff(head []byte) Kind {
	switch {
	case bytes.HasPrefix(head, []byte(scanMagic)):
		return KindScan
	case bytes.HasPrefix(head, []byte(ismMagic)):
		return KindISM
	case bytes.HasPrefix(head, []byte("VERSION")), bytes.HasPrefix(head, []byte("#")):
		return KindPCD
	}
	return KindUnknown
}

func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &pcd.IOError{Op: "read", Path: path, Err: err}
	}
	return b, nil
}

func decode(b []byte, path string) (*pcd.PointCloud, *pcd.Segmentation, Kind, error) {
	kind := KindOf(path)
	if kind == KindUnknown {
		kind = Sniff(b)
	}
	switch kind {
	case KindScan:
		pc, err := decodeScan(b)
		return pc, nil, kind, err
	case KindISM:
		pc, seg, err := decodeISM(b)
		return pc, seg, kind, err
	case KindPCD:
		pc, err := ReadPCD(bytes.NewReader(b))
		return pc, nil, kind, err
	}
	return nil, nil, kind, errors.Wrap(pcd.ErrMalformedHeader, "unknown file signature")
}

// Load reads a point cloud file. Segmentation of ISM_BIN files is dropped.
func Load(path string, opts ...Option) (*pcd.PointCloud, error) {
	o := newOptions(opts)
	b, err := readFile(path)
	if err != nil {
		return nil, err
	}
	pc, _, kind, err := decode(b, path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	o.logger.Debugw("loaded", "path", path, "format", kind, "points", pc.NumPoints())
	return pc, nil
}

// LoadInto reads a point cloud file into dst. dst is unchanged on failure.
func LoadInto(dst *pcd.PointCloud, path string, opts ...Option) error {
	pc, err := Load(path, opts...)
	if err != nil {
		return err
	}
	dst.Replace(pc)
	return nil
}

// LoadISM reads a legacy ISM_BIN file with per-point object and label ids.
func LoadISM(path string, opts ...Option) (*pcd.PointCloud, *pcd.Segmentation, error) {
	o := newOptions(opts)
	b, err := readFile(path)
	if err != nil {
		return nil, nil, err
	}
	pc, seg, err := decodeISM(b)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "loading %s", path)
	}
	o.logger.Debugw("loaded",
		"path", path, "format", KindISM, "points", pc.NumPoints(),
		"objects", seg.NumObjects, "labels", seg.NumLabels,
	)
	return pc, seg, nil
}

// Save writes pc in the format selected by the extension of path.
func Save(pc *pcd.PointCloud, path string, opts ...Option) error {
	o := newOptions(opts)
	var enc func(io.Writer) error
	switch kind := KindOf(path); kind {
	case KindScan:
		enc = func(w io.Writer) error { return WriteScan(w, pc, o.compress) }
	case KindPCD:
		enc = func(w io.Writer) error { return WritePCD(w, pc) }
	case KindISM:
		return errors.Wrap(pcd.ErrMissingMetadata, "use SaveISM to write ISM_BIN")
	default:
		return errors.Wrapf(pcd.ErrUnsupportedFormat, "extension of %s", path)
	}
	if err := WriteFileAtomic(path, enc); err != nil {
		return err
	}
	o.logger.Debugw("saved", "path", path, "points", pc.NumPoints(), "compress", o.compress)
	return nil
}

// SaveISM writes pc and its segmentation in the legacy ISM_BIN format.
func SaveISM(pc *pcd.PointCloud, seg *pcd.Segmentation, path string, opts ...Option) error {
	o := newOptions(opts)
	if err := seg.Check(pc.NumPoints()); err != nil {
		return err
	}
	if err := WriteFileAtomic(path, func(w io.Writer) error { return WriteISM(w, pc, seg) }); err != nil {
		return err
	}
	o.logger.Debugw("saved", "path", path, "format", KindISM, "points", pc.NumPoints())
	return nil
}

// WriteFileAtomic runs enc and writes its output to a temporary file next to path,
// then renames it. Encoder errors are returned as is.
func WriteFileAtomic(path string, enc func(io.Writer) error) (err error) {
	var buf bytes.Buffer
	if err := enc(&buf); err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return &pcd.IOError{Op: "create", Path: tmp, Err: err}
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err := buf.WriteTo(f); err != nil {
		return multierr.Append(&pcd.IOError{Op: "write", Path: tmp, Err: err}, f.Close())
	}
	if err := f.Close(); err != nil {
		return &pcd.IOError{Op: "close", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &pcd.IOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
