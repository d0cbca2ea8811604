package main

import (
	"github.com/seqsense/scancloud/pcd"
	"github.com/seqsense/scancloud/pcd/storage/kdtree"
)

const (
	maxHistoryDefault = 4
)

type history interface {
	MaxHistory() int
	SetMaxHistory(m int)
	push(s snapshot) snapshot
	undo() (snapshot, bool)
	clear()
}

type editor struct {
	history
	pc  *pcd.PointCloud
	seg *pcd.Segmentation
	kdt *kdtree.KDTree
}

func newEditor(maxHistory int) *editor {
	return &editor{
		history: newHistory(maxHistory),
	}
}

// SetPointCloud replaces the current cloud and records it to the history.
// seg may be nil.
func (e *editor) SetPointCloud(pc *pcd.PointCloud, seg *pcd.Segmentation) {
	s := e.push(snapshot{pc: pc, seg: seg})
	e.pc, e.seg = s.pc, s.seg
	e.kdt = nil
}

func (e *editor) PointCloud() (*pcd.PointCloud, *pcd.Segmentation, bool) {
	return e.pc, e.seg, e.pc != nil
}

func (e *editor) Undo() bool {
	s, ok := e.history.undo()
	if ok {
		e.pc, e.seg = s.pc, s.seg
		e.kdt = nil
	}
	return ok
}

func (e *editor) Reset() {
	e.clear()
	e.pc = nil
	e.seg = nil
	e.kdt = nil
}

// index returns the spatial index of the current cloud, rebuilding it if stale.
func (e *editor) index() *kdtree.KDTree {
	if e.kdt == nil || e.kdt.Stale(e.pc) {
		e.kdt = kdtree.NewFromCloud(e.pc)
	}
	return e.kdt
}
