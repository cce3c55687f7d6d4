// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsioctl"
	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsitem"
	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsprim"
	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsvol"
)

func newTestFS(t *testing.T) (string, *btrfsioctl.MemTree) {
	t.Helper()
	dir := t.TempDir()
	tree := new(btrfsioctl.MemTree)
	for i, name := range []string{"a", "b"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		var st unix.Stat_t
		require.NoError(t, unix.Stat(path, &st))
		tree.AddFileExtent(btrfsprim.ObjID(st.Ino), 0, btrfsitem.FileExtent{
			Generation:  1,
			RAMBytes:    128 * 1024,
			Compression: btrfsitem.COMPRESS_ZSTD,
			Type:        btrfsitem.FILE_EXTENT_REG,
			BodyExtent: btrfsitem.FileExtentExtent{
				DiskByteNr:   0x100000,
				DiskNumBytes: 32 * 1024,
				Offset:       btrfsvol.AddrDelta(i * 4096),
				NumBytes:     64 * 1024,
			},
		})
	}
	return dir, tree
}

func run(t *testing.T, tree *btrfsioctl.MemTree, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd, stopProfiling := newCommand(func(*os.File) btrfsioctl.Searcher { return tree })
	defer func() {
		assert.NoError(t, stopProfiling())
	}()
	var outBuf, errBuf strings.Builder
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return outBuf.String(), errBuf.String(), err
}

func TestMainTable(t *testing.T) {
	dir, tree := newTestFS(t)
	stdout, _, err := run(t, tree, "--bytes", "--jobs=2", dir)
	require.NoError(t, err)
	assert.Equal(t, ""+
		"Processed 2 files, 1 regular extents (2 refs), 0 inline.\n"+
		"Type       Perc     Disk Usage   Uncompressed Referenced  \n"+
		"TOTAL      25.00%   32768        131072       131072      \n"+
		"zstd       25.00%   32768        131072       131072      \n",
		stdout)
}

func TestMainJSON(t *testing.T) {
	dir, tree := newTestFS(t)
	stdout, _, err := run(t, tree, "--json", "-x", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"type": "zstd"`)
}

func TestMainBadRoot(t *testing.T) {
	dir, tree := newTestFS(t)
	_, _, err := run(t, tree, filepath.Join(dir, "nonexistent"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent")
	assert.Equal(t, 0, tree.Searches())
}

func TestMainUsage(t *testing.T) {
	_, tree := newTestFS(t)
	_, _, err := run(t, tree)
	assert.Error(t, err)
	_, _, err = run(t, tree, "--no-such-flag", ".")
	assert.Error(t, err)
}

func TestMainDumpExtents(t *testing.T) {
	dir, tree := newTestFS(t)
	stdout, _, err := run(t, tree, "dump-extents", filepath.Join(dir, "a"), filepath.Join(dir, "b"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "EXTENT_DATA")
	assert.Contains(t, stdout, "DiskByteNr")
	assert.Contains(t, stdout, ": 1 searches")
	var st unix.Stat_t
	require.NoError(t, unix.Stat(filepath.Join(dir, "a"), &st))
	assert.Contains(t, stdout, fmt.Sprintf("%s: inode %d\n", filepath.Join(dir, "a"), st.Ino))

	_, _, err = run(t, tree, "dump-extents", filepath.Join(dir, "nonexistent"))
	assert.Error(t, err)
}
