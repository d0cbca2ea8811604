// Package extract splits a segmented point cloud into one scan file per group.
package extract

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/seqsense/scancloud/pcd"
	"github.com/seqsense/scancloud/pcd/format"
)

type Kind int

const (
	KindObject Kind = iota
	KindLabel
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindLabel:
		return "label"
	}
	return "unknown"
}

// FileName returns the name of the file holding the group of given id.
func FileName(kind Kind, id int32) string {
	return fmt.Sprintf("%s_%d.scan", kind, id)
}

type Options struct {
	Compress bool
	Logger   golog.Logger
}

// GroupError describes a group failed to be written.
type GroupError struct {
	Kind Kind
	ID   int32
	Path string
	Err  error
}

func (e *GroupError) Error() string {
	return fmt.Sprintf("%s %d (%s): %v", e.Kind, e.ID, e.Path, e.Err)
}

func (e *GroupError) Unwrap() error {
	return e.Err
}

type File struct {
	ID     int32
	Path   string
	Points int
}

// Report lists written files in ascending id order.
type Report struct {
	Kind  Kind
	Files []File
}

// Objects writes one file per object id into dir.
// Every id below the declared object count gets a file, even an empty one.
func Objects(pc *pcd.PointCloud, seg *pcd.Segmentation, dir string, opts Options) (*Report, error) {
	if err := seg.Check(pc.NumPoints()); err != nil {
		return nil, err
	}
	return Extract(pc, seg.ObjectIDs, seg.NumObjects, KindObject, dir, opts)
}

// Labels writes one file per label id into dir.
// Every id below the declared label count gets a file, even an empty one.
func Labels(pc *pcd.PointCloud, seg *pcd.Segmentation, dir string, opts Options) (*Report, error) {
	if err := seg.Check(pc.NumPoints()); err != nil {
		return nil, err
	}
	return Extract(pc, seg.LabelIDs, seg.NumLabels, KindLabel, dir, opts)
}

// Group returns point indices grouped by id and the ids in ascending order.
// Ids in [0, declared) are present even if no point has them.
func Group(ids []int32, declared int64) (map[int32][]int, []int32) {
	groups := make(map[int32][]int)
	for id := int64(0); id < declared && id <= math.MaxInt32; id++ {
		groups[int32(id)] = nil
	}
	for i, id := range ids {
		groups[id] = append(groups[id], i)
	}
	keys := make([]int32, 0, len(groups))
	for id := range groups {
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return groups, keys
}

// Extract writes the points of every distinct id of ids and of every id below
// declared into dir.
// All groups are attempted. Failures are combined and each one is a *GroupError.
func Extract(pc *pcd.PointCloud, ids []int32, declared int64, kind Kind, dir string, opts Options) (*Report, error) {
	if len(ids) != pc.NumPoints() {
		return nil, errors.Wrapf(pcd.ErrMissingMetadata,
			"%d ids for %d points", len(ids), pc.NumPoints())
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &pcd.IOError{Op: "mkdir", Path: dir, Err: err}
	}

	groups, keys := Group(ids, declared)
	report := &Report{Kind: kind}
	var errs error
	for _, id := range keys {
		indices := groups[id]
		path := filepath.Join(dir, FileName(kind, id))
		if err := format.Save(pc.Subset(indices), path, format.WithCompression(opts.Compress)); err != nil {
			logger.Warnw("failed to write group", "kind", kind, "id", id, "path", path, "error", err)
			errs = multierr.Append(errs, &GroupError{Kind: kind, ID: id, Path: path, Err: err})
			continue
		}
		report.Files = append(report.Files, File{ID: id, Path: path, Points: len(indices)})
	}
	logger.Infow("extracted groups",
		"kind", kind, "dir", dir, "written", len(report.Files), "groups", len(keys))
	return report, errs
}
