package pcd

import (
	"github.com/pkg/errors"
)

// Segmentation holds per-point object and label ids read from the legacy format.
// NumObjects and NumLabels are the counts declared by the file header.
type Segmentation struct {
	ObjectIDs  []int32
	LabelIDs   []int32
	NumObjects int64
	NumLabels  int64
}

// Check reports ErrMissingMetadata unless s carries one object and one label id
// for each of n points.
func (s *Segmentation) Check(n int) error {
	if s == nil {
		return ErrMissingMetadata
	}
	if len(s.ObjectIDs) != n || len(s.LabelIDs) != n {
		return errors.Wrapf(ErrMissingMetadata,
			"%d points, %d object ids, %d label ids", n, len(s.ObjectIDs), len(s.LabelIDs))
	}
	return nil
}

// Counts returns max id + 1 of objects and labels, or zeros when empty.
func (s *Segmentation) Counts() (objects, labels int64) {
	return maxPlusOne(s.ObjectIDs), maxPlusOne(s.LabelIDs)
}

// Subset returns the ids at given indices. Header counts are kept.
func (s *Segmentation) Subset(indices []int) *Segmentation {
	out := &Segmentation{
		ObjectIDs:  make([]int32, len(indices)),
		LabelIDs:   make([]int32, len(indices)),
		NumObjects: s.NumObjects,
		NumLabels:  s.NumLabels,
	}
	for j, i := range indices {
		out.ObjectIDs[j] = s.ObjectIDs[i]
		out.LabelIDs[j] = s.LabelIDs[i]
	}
	return out
}

func maxPlusOne(ids []int32) int64 {
	var n int64
	for _, id := range ids {
		if int64(id)+1 > n {
			n = int64(id) + 1
		}
	}
	return n
}
