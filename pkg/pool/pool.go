// Object pool for reducing GC pressure on the snapshot path
//
// The control loop builds a fresh status map on every poll and hands it to
// the streaming layer, which retires the previous one. The map shells cycle
// through this pool; the entry values are never recycled, so readers holding
// filtered copies of a retired snapshot stay safe.
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import (
	"sync"
)

// StatusMap pool - for snapshot maps handed to the streaming layer
var statusMapPool = sync.Pool{
	New: func() any {
		return make(map[string]any, 16)
	},
}

// GetStatusMap gets a status map from the pool
func GetStatusMap() map[string]any {
	return statusMapPool.Get().(map[string]any)
}

// PutStatusMap returns a status map to the pool
func PutStatusMap(m map[string]any) {
	if m == nil {
		return
	}
	clear(m)
	statusMapPool.Put(m)
}
