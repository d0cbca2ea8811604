package filter

import (
	"github.com/seqsense/scancloud/pcd"
)

// Filter returns a new cloud derived from the input. Input is never modified.
type Filter interface {
	Filter(*pcd.PointCloud) (*pcd.PointCloud, error)
}

// Sampler selects a subset of the input points.
type Sampler interface {
	Filter
	// Sample returns indices of kept points in ascending order.
	Sample(*pcd.PointCloud) ([]int, error)
}
