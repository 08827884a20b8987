// Snapshot source for the streaming server
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package stream

import (
	"sort"
	"sync"

	"sensor-bridge-go/pkg/pool"
)

// BridgeSource is the read side the streaming server serves from. The
// control loop stays the only goroutine touching the bridge itself; the
// server only ever sees published snapshots.
type BridgeSource interface {
	// BridgeState returns the bridge lifecycle state name.
	BridgeState() string

	// SensorKeys returns the "category/name" keys present in the latest
	// snapshot, sorted.
	SensorKeys() []string

	// SensorStatus returns the latest sample of one sensor, filtered to the
	// requested fields (nil means all). A nil return means the key is
	// unknown.
	SensorStatus(key string, fields []string) map[string]any
}

// SnapshotSource is a BridgeSource fed by the control loop. Publish replaces
// the whole snapshot atomically; readers never see a half-written update.
type SnapshotSource struct {
	mu       sync.RWMutex
	snapshot map[string]any
}

// NewSnapshotSource creates an empty source reporting the unconfigured state.
func NewSnapshotSource() *SnapshotSource {
	return &SnapshotSource{snapshot: make(map[string]any)}
}

// Publish replaces the current snapshot. The caller hands over ownership of
// the map; the retired snapshot goes back to the status pool. Entry values
// are never recycled, so readers holding filtered copies stay safe.
func (s *SnapshotSource) Publish(snapshot map[string]any) {
	s.mu.Lock()
	old := s.snapshot
	s.snapshot = snapshot
	s.mu.Unlock()

	pool.PutStatusMap(old)
}

func (s *SnapshotSource) BridgeState() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if info, ok := s.snapshot["bridge"].(map[string]any); ok {
		if state, ok := info["state"].(string); ok {
			return state
		}
	}
	return "unconfigured"
}

func (s *SnapshotSource) SensorKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.snapshot))
	for key := range s.snapshot {
		if key == "bridge" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *SnapshotSource) SensorStatus(key string, fields []string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.snapshot[key].(map[string]any)
	if !ok {
		return nil
	}
	if len(fields) == 0 {
		out := make(map[string]any, len(entry))
		for k, v := range entry {
			out[k] = v
		}
		return out
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, exists := entry[f]; exists {
			out[f] = v
		}
	}
	return out
}
