// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package compsize

import (
	"sync"

	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsvol"
	"git.lukeshu.com/btrfs-compsize/lib/containers"
)

// ExtentRegistry records which on-disk extents have been counted so
// far.  It is safe for concurrent use.
type ExtentRegistry struct {
	mu   sync.Mutex
	seen containers.Set[btrfsvol.LogicalAddr]
}

func NewExtentRegistry() *ExtentRegistry {
	return &ExtentRegistry{
		seen: make(containers.Set[btrfsvol.LogicalAddr]),
	}
}

// Insert records addr, and reports whether this is the first time
// that addr has been inserted.
func (r *ExtentRegistry) Insert(addr btrfsvol.LogicalAddr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen.Insert(addr)
}

// Len returns the number of distinct extents inserted.
func (r *ExtentRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}
