// Package kdtree implements a static kd-tree over point positions.
package kdtree

import (
	"container/heap"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/seqsense/scancloud/mat"
	"github.com/seqsense/scancloud/pcd"
)

const DefaultLeafSize = 8

type Neighbor struct {
	Index  int
	DistSq float64
}

// KDTree is built once and read-only afterwards.
// Queries are safe to be called concurrently.
type KDTree struct {
	points   []mat.Vec3
	indices  []int
	nodes    []node
	leafSize int

	cloud      *pcd.PointCloud
	generation uint64
}

type node struct {
	axis        int
	split       float32
	begin, end  int
	left, right int
}

type Option func(*KDTree)

func WithLeafSize(n int) Option {
	return func(t *KDTree) {
		if n > 0 {
			t.leafSize = n
		}
	}
}

func New(ra pcd.Vec3RandomAccessor, opts ...Option) *KDTree {
	n := ra.Len()
	t := &KDTree{
		points:   make([]mat.Vec3, n),
		indices:  make([]int, n),
		leafSize: DefaultLeafSize,
	}
	for _, o := range opts {
		o(t)
	}
	for i := 0; i < n; i++ {
		t.points[i] = ra.Vec3At(i)
		t.indices[i] = i
	}
	if n > 0 {
		t.build(0, n)
	}
	return t
}

// NewFromCloud builds the tree over the positions of pc and records
// its generation for Stale.
func NewFromCloud(pc *pcd.PointCloud, opts ...Option) *KDTree {
	t := New(pc.Positions(), opts...)
	t.cloud = pc
	t.generation = pc.Generation()
	return t
}

// Stale reports whether the tree does not index the current positions of pc,
// either because it was built from another cloud or because pc has moved
// or changed its points since. Tree never refreshes itself.
func (t *KDTree) Stale(pc *pcd.PointCloud) bool {
	return t.cloud != pc || t.generation != pc.Generation() || len(t.points) != pc.NumPoints()
}

func (t *KDTree) Len() int {
	return len(t.points)
}

func (t *KDTree) build(begin, end int) int {
	id := len(t.nodes)
	t.nodes = append(t.nodes, node{begin: begin, end: end, left: -1, right: -1})
	if end-begin <= t.leafSize {
		return id
	}

	min, max := t.points[t.indices[begin]], t.points[t.indices[begin]]
	for _, i := range t.indices[begin+1 : end] {
		min = min.Min(t.points[i])
		max = max.Max(t.points[i])
	}
	spread := max.Sub(min)
	axis := 0
	for a := 1; a < 3; a++ {
		if spread[a] > spread[axis] {
			axis = a
		}
	}

	s := t.indices[begin:end]
	sort.Slice(s, func(i, j int) bool {
		ci, cj := t.points[s[i]][axis], t.points[s[j]][axis]
		if ci != cj {
			return ci < cj
		}
		return s[i] < s[j]
	})
	mid := (begin + end) / 2

	left := t.build(begin, mid)
	right := t.build(mid, end)
	nd := &t.nodes[id]
	nd.axis = axis
	nd.split = t.points[t.indices[mid]][axis]
	nd.left, nd.right = left, right
	return id
}

// Nearest returns up to k points closest to q in ascending order of
// distance. Ties are ordered by index.
func (t *KDTree) Nearest(q mat.Vec3, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, errors.Wrapf(pcd.ErrOutOfRange, "k=%d", k)
	}
	if len(t.points) == 0 {
		return nil, nil
	}
	if k > len(t.points) {
		k = len(t.points)
	}
	h := make(neighborHeap, 0, k)
	t.nearest(0, q, k, &h)

	ret := make([]Neighbor, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		ret[i] = heap.Pop(&h).(Neighbor)
	}
	return ret, nil
}

func (t *KDTree) nearest(id int, q mat.Vec3, k int, h *neighborHeap) {
	nd := &t.nodes[id]
	if nd.left < 0 {
		for _, i := range t.indices[nd.begin:nd.end] {
			n := Neighbor{Index: i, DistSq: q.DistSq(t.points[i])}
			if len(*h) < k {
				heap.Push(h, n)
			} else if less(n, (*h)[0]) {
				(*h)[0] = n
				heap.Fix(h, 0)
			}
		}
		return
	}
	diff := float64(q[nd.axis]) - float64(nd.split)
	near, far := nd.left, nd.right
	if diff >= 0 {
		near, far = far, near
	}
	t.nearest(near, q, k, h)
	if len(*h) < k || diff*diff <= (*h)[0].DistSq {
		t.nearest(far, q, k, h)
	}
}

// Radius returns indices of all points within r from q. Order is not defined.
func (t *KDTree) Radius(q mat.Vec3, r float32) ([]int, error) {
	if r < 0 || math.IsNaN(float64(r)) {
		return nil, errors.Wrapf(pcd.ErrOutOfRange, "r=%v", r)
	}
	if len(t.points) == 0 {
		return nil, nil
	}
	var ret []int
	rsq := float64(r) * float64(r)
	t.radius(0, q, rsq, &ret)
	return ret, nil
}

func (t *KDTree) radius(id int, q mat.Vec3, rsq float64, ret *[]int) {
	nd := &t.nodes[id]
	if nd.left < 0 {
		for _, i := range t.indices[nd.begin:nd.end] {
			if q.DistSq(t.points[i]) <= rsq {
				*ret = append(*ret, i)
			}
		}
		return
	}
	diff := float64(q[nd.axis]) - float64(nd.split)
	near, far := nd.left, nd.right
	if diff >= 0 {
		near, far = far, near
	}
	t.radius(near, q, rsq, ret)
	if diff*diff <= rsq {
		t.radius(far, q, rsq, ret)
	}
}

func less(a, b Neighbor) bool {
	if a.DistSq != b.DistSq {
		return a.DistSq < b.DistSq
	}
	return a.Index < b.Index
}

// neighborHeap is a max-heap holding the current k best candidates.
type neighborHeap []Neighbor

func (h neighborHeap) Len() int           { return len(h) }
func (h neighborHeap) Less(i, j int) bool { return less(h[j], h[i]) }
func (h neighborHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *neighborHeap) Push(x interface{}) {
	*h = append(*h, x.(Neighbor))
}

func (h *neighborHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
