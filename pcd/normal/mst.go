package normal

import (
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/seqsense/scancloud/mat"
	"github.com/seqsense/scancloud/pcd"
	"github.com/seqsense/scancloud/pcd/storage/kdtree"
)

// orientMST flips normals in place and returns the number of connected components.
// Zero normals are left out of the graph.
func orientMST(pc *pcd.PointCloud, kdt *kdtree.KDTree, normals []mat.Vec3, k int) (int, error) {
	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for i, nv := range normals {
		if !nv.IsZero() {
			g.AddNode(simple.Node(i))
		}
	}
	for i, ni := range normals {
		if ni.IsZero() {
			continue
		}
		nn, err := kdt.Nearest(pc.Point(i).Position, k+1)
		if err != nil {
			return 0, err
		}
		for _, nb := range nn {
			j := nb.Index
			if j == i || normals[j].IsZero() {
				continue
			}
			w := 1 - math.Abs(float64(ni.Dot(normals[j])))
			g.SetWeightedEdge(simple.WeightedEdge{
				F: simple.Node(i),
				T: simple.Node(j),
				W: math.Max(w, 0),
			})
		}
	}

	forest := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	path.Prim(forest, g)

	visited := make([]bool, len(normals))
	var components int
	for i, nv := range normals {
		if nv.IsZero() || visited[i] {
			continue
		}
		components++

		members := walk(forest, i, visited, nil)
		seed := members[0]
		for _, m := range members[1:] {
			zm, zs := pc.Point(m).Position[2], pc.Point(seed).Position[2]
			if zm > zs || (zm == zs && m < seed) {
				seed = m
			}
		}
		if normals[seed][2] < 0 {
			normals[seed] = normals[seed].Neg()
		}

		for _, m := range members {
			visited[m] = false
		}
		walk(forest, seed, visited, func(parent, child int) {
			if normals[parent].Dot(normals[child]) < 0 {
				normals[child] = normals[child].Neg()
			}
		})
	}
	return components, nil
}

// walk traverses the tree containing start breadth-first, marking visited
// nodes, and calls fn for every traversed edge in parent to child order.
func walk(forest *simple.WeightedUndirectedGraph, start int, visited []bool, fn func(parent, child int)) []int {
	visited[start] = true
	queue := []int{start}
	members := []int{start}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		it := forest.From(int64(u))
		for it.Next() {
			v := int(it.Node().ID())
			if visited[v] {
				continue
			}
			visited[v] = true
			if fn != nil {
				fn(u, v)
			}
			queue = append(queue, v)
			members = append(members, v)
		}
	}
	return members
}
