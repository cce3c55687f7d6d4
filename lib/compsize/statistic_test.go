// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package compsize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsitem"
	"git.lukeshu.com/btrfs-compsize/lib/compsize"
)

func sampleStats() (a, b, c compsize.Statistic) {
	a = compsize.Statistic{
		Extents: map[btrfsitem.CompressionType]compsize.ExtentInfo{
			btrfsitem.COMPRESS_NONE: {DiskBytes: 4096, UncompressedBytes: 4096, ReferencedBytes: 8192},
		},
		NFiles: 2, NExtents: 1, NRefs: 2,
	}
	b = compsize.Statistic{
		Extents: map[btrfsitem.CompressionType]compsize.ExtentInfo{
			btrfsitem.COMPRESS_NONE: {DiskBytes: 100, UncompressedBytes: 100, ReferencedBytes: 100},
			btrfsitem.COMPRESS_ZSTD: {DiskBytes: 1024, UncompressedBytes: 131072, ReferencedBytes: 131072},
		},
		NFiles: 3, NExtents: 1, NRefs: 1, NInline: 1,
	}
	c = compsize.Statistic{
		Extents: map[btrfsitem.CompressionType]compsize.ExtentInfo{
			btrfsitem.COMPRESS_LZO: {DiskBytes: 1, UncompressedBytes: 2, ReferencedBytes: 3},
		},
		NFiles: 1, NErrors: 4,
	}
	return a, b, c
}

func merged(stats ...compsize.Statistic) compsize.Statistic {
	var ret compsize.Statistic
	for _, s := range stats {
		ret.Merge(s)
	}
	return ret
}

func TestMergeLaws(t *testing.T) {
	t.Parallel()
	a, b, c := sampleStats()

	ab := merged(a, b)
	bc := merged(b, c)
	abc1 := merged(ab, c)
	abc2 := merged(a, bc)
	abc3 := merged(merged(b, a), c)
	abc4 := merged(c, b, a)
	assert.Equal(t, abc1, abc2)
	assert.Equal(t, abc1, abc3)
	assert.Equal(t, abc1, abc4)

	assert.Equal(t, uint64(6), abc1.NFiles)
	assert.Equal(t, uint64(2), abc1.NExtents)
	assert.Equal(t, uint64(3), abc1.NRefs)
	assert.Equal(t, uint64(1), abc1.NInline)
	assert.Equal(t, uint64(4), abc1.NErrors)
	assert.Equal(t,
		compsize.ExtentInfo{DiskBytes: 4196, UncompressedBytes: 4196, ReferencedBytes: 8292},
		abc1.Extents[btrfsitem.COMPRESS_NONE])
}

func TestMergeIdentity(t *testing.T) {
	t.Parallel()
	a, _, _ := sampleStats()
	var empty compsize.Statistic
	assert.Equal(t, a, merged(a, empty))
	assert.Equal(t, a, merged(empty, a))

	// Merging must not alias the other Statistic's map.
	m := merged(a)
	m.Merge(a)
	assert.Equal(t, uint64(4096), a.Extents[btrfsitem.COMPRESS_NONE].DiskBytes)
}

func TestTotal(t *testing.T) {
	t.Parallel()
	_, b, _ := sampleStats()
	assert.Equal(t,
		compsize.ExtentInfo{DiskBytes: 1124, UncompressedBytes: 131172, ReferencedBytes: 131172},
		b.Total())
	assert.Equal(t, compsize.ExtentInfo{}, compsize.Statistic{}.Total())
}

func TestSortedCompressions(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		[]btrfsitem.CompressionType{btrfsitem.COMPRESS_NONE, btrfsitem.COMPRESS_LZO, btrfsitem.COMPRESS_ZSTD},
		merged(sampleStats()).SortedCompressions())
}
