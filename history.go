package main

import (
	"github.com/seqsense/scancloud/pcd"
)

type snapshot struct {
	pc  *pcd.PointCloud
	seg *pcd.Segmentation
}

// historyMemory keeps the latest MaxHistory+1 snapshots.
// Stored clouds must not be modified.
type historyMemory struct {
	history    []snapshot
	maxHistory int
}

func newHistory(n int) history {
	return &historyMemory{maxHistory: n}
}

func (h *historyMemory) MaxHistory() int {
	return h.maxHistory
}

func (h *historyMemory) SetMaxHistory(m int) {
	if m < 0 {
		m = 0
	}
	h.maxHistory = m
	if over := len(h.history) - (m + 1); over > 0 {
		h.history = append([]snapshot{}, h.history[over:]...)
	}
}

func (h *historyMemory) push(s snapshot) snapshot {
	h.history = append(h.history, s)
	if len(h.history) > h.MaxHistory()+1 {
		h.history[0] = snapshot{}
		h.history = h.history[1:]
	}
	return s
}

func (h *historyMemory) undo() (snapshot, bool) {
	if n := len(h.history); n > 1 {
		h.history[n-1] = snapshot{}
		h.history = h.history[:n-1]
		return h.history[n-2], true
	}
	return snapshot{}, false
}

func (h *historyMemory) clear() {
	h.history = nil
}
