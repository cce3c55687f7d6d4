// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package compsize measures the on-disk size of files on btrfs,
// accounting for compression and for extents that are shared between
// files (reflinks, snapshots, deduplication).
package compsize

import (
	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsitem"
	"git.lukeshu.com/btrfs-compsize/lib/maps"
)

// ExtentInfo is a set of byte totals.
type ExtentInfo struct {
	// DiskBytes is the space used on disk (after compression) by
	// the distinct extents.
	DiskBytes uint64
	// UncompressedBytes is the size of the distinct extents before
	// compression.
	UncompressedBytes uint64
	// ReferencedBytes is the amount of file data that refers to
	// the extents, counting every reference.
	ReferencedBytes uint64
}

func (a *ExtentInfo) add(b ExtentInfo) {
	a.DiskBytes += b.DiskBytes
	a.UncompressedBytes += b.UncompressedBytes
	a.ReferencedBytes += b.ReferencedBytes
}

// Statistic is the result of scanning some set of files.  The zero
// value is an empty Statistic, ready to use.
type Statistic struct {
	Extents map[btrfsitem.CompressionType]ExtentInfo

	NFiles   uint64 // regular files visited
	NExtents uint64 // distinct non-inline extents
	NRefs    uint64 // references to non-inline extents
	NInline  uint64 // inline extents
	NErrors  uint64 // files or directories that could not be scanned
}

func (s *Statistic) bucket(comp btrfsitem.CompressionType) ExtentInfo {
	return s.Extents[comp]
}

func (s *Statistic) setBucket(comp btrfsitem.CompressionType, info ExtentInfo) {
	if s.Extents == nil {
		s.Extents = make(map[btrfsitem.CompressionType]ExtentInfo)
	}
	s.Extents[comp] = info
}

// Merge adds other in to s.  Merging is commutative and associative,
// so per-worker Statistics may be combined in any order.
func (s *Statistic) Merge(other Statistic) {
	s.NFiles += other.NFiles
	s.NExtents += other.NExtents
	s.NRefs += other.NRefs
	s.NInline += other.NInline
	s.NErrors += other.NErrors
	for comp, info := range other.Extents {
		sum := s.bucket(comp)
		sum.add(info)
		s.setBucket(comp, sum)
	}
}

// Total sums the buckets of every compression type.
func (s Statistic) Total() ExtentInfo {
	var ret ExtentInfo
	for _, info := range s.Extents {
		ret.add(info)
	}
	return ret
}

// SortedCompressions returns the compression types that have buckets,
// in ascending numeric order (none, zlib, lzo, zstd, ...).
func (s Statistic) SortedCompressions() []btrfsitem.CompressionType {
	return maps.SortedKeys(s.Extents)
}
