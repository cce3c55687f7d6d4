// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package compsize_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsioctl"
	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsitem"
	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsprim"
	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsvol"
	"git.lukeshu.com/btrfs-compsize/lib/compsize"
)

func touch(t *testing.T, path string) btrfsprim.ObjID {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	var st unix.Stat_t
	require.NoError(t, unix.Stat(path, &st))
	return btrfsprim.ObjID(st.Ino)
}

func memSearcher(tree *btrfsioctl.MemTree) compsize.SearcherFunc {
	return func(*os.File) btrfsioctl.Searcher { return tree }
}

func extent(comp btrfsitem.CompressionType, addr btrfsvol.LogicalAddr, diskBytes, ramBytes, numBytes int64) btrfsitem.FileExtent {
	return btrfsitem.FileExtent{
		Generation:  10,
		RAMBytes:    ramBytes,
		Compression: comp,
		Type:        btrfsitem.FILE_EXTENT_REG,
		BodyExtent: btrfsitem.FileExtentExtent{
			DiskByteNr:   addr,
			DiskNumBytes: btrfsvol.AddrDelta(diskBytes),
			NumBytes:     numBytes,
		},
	}
}

func inline(comp btrfsitem.CompressionType, ramBytes int64, data []byte) btrfsitem.FileExtent {
	return btrfsitem.FileExtent{
		Generation:  10,
		RAMBytes:    ramBytes,
		Compression: comp,
		Type:        btrfsitem.FILE_EXTENT_INLINE,
		BodyInline:  data,
	}
}

func TestScanEmptyFile(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)
	path := filepath.Join(t.TempDir(), "empty")
	touch(t, path)

	w := compsize.NewWorker(compsize.NewExtentRegistry(), memSearcher(new(btrfsioctl.MemTree)))
	require.NoError(t, w.ScanFile(ctx, path))
	assert.Equal(t, compsize.Statistic{NFiles: 1}, w.Stats)
}

func TestScanInline(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)
	path := filepath.Join(t.TempDir(), "small")
	ino := touch(t, path)

	tree := new(btrfsioctl.MemTree)
	tree.AddFileExtent(ino, 0, inline(btrfsitem.COMPRESS_NONE, 100, make([]byte, 100)))
	// Nothing after an inline extent is looked at.
	tree.AddFileExtent(ino, 4096, extent(btrfsitem.COMPRESS_NONE, 0x9000, 4096, 4096, 4096))

	reg := compsize.NewExtentRegistry()
	w := compsize.NewWorker(reg, memSearcher(tree))
	require.NoError(t, w.ScanFile(ctx, path))
	assert.Equal(t, compsize.Statistic{
		Extents: map[btrfsitem.CompressionType]compsize.ExtentInfo{
			btrfsitem.COMPRESS_NONE: {DiskBytes: 100, UncompressedBytes: 100, ReferencedBytes: 100},
		},
		NFiles:  1,
		NInline: 1,
	}, w.Stats)
	assert.Equal(t, 0, reg.Len())
}

func TestScanInlineCompressed(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)
	path := filepath.Join(t.TempDir(), "small")
	ino := touch(t, path)

	tree := new(btrfsioctl.MemTree)
	tree.AddFileExtent(ino, 0, inline(btrfsitem.COMPRESS_ZLIB, 3000, make([]byte, 250)))

	w := compsize.NewWorker(compsize.NewExtentRegistry(), memSearcher(tree))
	require.NoError(t, w.ScanFile(ctx, path))
	assert.Equal(t,
		compsize.ExtentInfo{DiskBytes: 250, UncompressedBytes: 3000, ReferencedBytes: 3000},
		w.Stats.Extents[btrfsitem.COMPRESS_ZLIB])
}

func TestScanSharedExtent(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a")
	pathB := filepath.Join(dir, "b")
	inoA := touch(t, pathA)
	inoB := touch(t, pathB)

	tree := new(btrfsioctl.MemTree)
	tree.AddFileExtent(inoA, 0, extent(btrfsitem.COMPRESS_ZSTD, 0x10000, 4096, 4096, 4096))
	tree.AddFileExtent(inoB, 0, extent(btrfsitem.COMPRESS_ZSTD, 0x10000, 4096, 4096, 4096))

	reg := compsize.NewExtentRegistry()
	w1 := compsize.NewWorker(reg, memSearcher(tree))
	w2 := compsize.NewWorker(reg, memSearcher(tree))
	require.NoError(t, w1.ScanFile(ctx, pathA))
	require.NoError(t, w2.ScanFile(ctx, pathB))

	var stats compsize.Statistic
	stats.Merge(w2.Stats)
	stats.Merge(w1.Stats)
	assert.Equal(t, compsize.Statistic{
		Extents: map[btrfsitem.CompressionType]compsize.ExtentInfo{
			btrfsitem.COMPRESS_ZSTD: {DiskBytes: 4096, UncompressedBytes: 4096, ReferencedBytes: 8192},
		},
		NFiles:   2,
		NExtents: 1,
		NRefs:    2,
	}, stats)
}

func TestScanReferencedBytes(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)
	path := filepath.Join(t.TempDir(), "big")
	ino := touch(t, path)

	// Enough extents to need several searches, some of them
	// partial references to the same extent.
	tree := new(btrfsioctl.MemTree)
	var wantRef uint64
	for i := 0; i < 2500; i++ {
		addr := btrfsvol.LogicalAddr(0x100000 + (i/2)*0x20000)
		numBytes := int64(4096 * (1 + i%3))
		tree.AddFileExtent(ino, uint64(i)*0x10000, extent(btrfsitem.COMPRESS_ZSTD, addr, 8192, 128*1024, numBytes))
		wantRef += uint64(numBytes)
	}

	w := compsize.NewWorker(compsize.NewExtentRegistry(), memSearcher(tree))
	require.NoError(t, w.ScanFile(ctx, path))
	assert.Equal(t, uint64(2500), w.Stats.NRefs)
	assert.Equal(t, uint64(1250), w.Stats.NExtents)
	assert.Equal(t, compsize.ExtentInfo{
		DiskBytes:         1250 * 8192,
		UncompressedBytes: 1250 * 128 * 1024,
		ReferencedBytes:   wantRef,
	}, w.Stats.Extents[btrfsitem.COMPRESS_ZSTD])
	assert.Equal(t, 4, tree.Searches())
}

func TestScanErrors(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	dir := t.TempDir()

	w := compsize.NewWorker(compsize.NewExtentRegistry(), memSearcher(new(btrfsioctl.MemTree)))
	err := w.ScanFile(ctx, filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, uint64(1), w.Stats.NFiles)

	path := filepath.Join(dir, "denied")
	ino := touch(t, path)
	tree := new(btrfsioctl.MemTree)
	tree.SetError(ino, unix.EPERM)
	w = compsize.NewWorker(compsize.NewExtentRegistry(), memSearcher(tree))
	err = w.ScanFile(ctx, path)
	var searchErr *btrfsioctl.SearchError
	assert.ErrorAs(t, err, &searchErr)
	assert.ErrorIs(t, err, unix.EPERM)
	assert.Equal(t, compsize.Statistic{NFiles: 1}, w.Stats)
}

func TestInodeOf(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	ino := touch(t, path)

	fh, err := os.Open(path)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, fh.Close())
	}()

	// Replace the path; the open file keeps its own inode.
	require.NoError(t, os.Rename(path, filepath.Join(dir, "old")))
	newIno := touch(t, path)
	require.NotEqual(t, ino, newIno)

	got, err := compsize.InodeOf(fh)
	require.NoError(t, err)
	assert.Equal(t, ino, got)
}
