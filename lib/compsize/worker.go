// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package compsize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/datawire/dlib/dlog"
	"golang.org/x/sys/unix"

	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsioctl"
	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsitem"
	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsprim"
)

// SearcherFunc returns the Searcher to use for finding the extents of
// an open file.
type SearcherFunc func(*os.File) btrfsioctl.Searcher

// IoctlSearcher is the SearcherFunc that uses the real kernel
// interface.
func IoctlSearcher(fh *os.File) btrfsioctl.Searcher {
	return btrfsioctl.FileSearcher{File: fh}
}

// A Worker scans files one at a time, accumulating a Statistic.  A
// Worker is not safe for concurrent use; give each goroutine its own
// Worker, and have them share an ExtentRegistry.
type Worker struct {
	registry *ExtentRegistry
	searcher SearcherFunc
	args     *btrfsioctl.SearchArgs

	Stats Statistic
}

// NewWorker returns a Worker that records extents in registry.  If
// searcher is nil, IoctlSearcher is used.
func NewWorker(registry *ExtentRegistry, searcher SearcherFunc) *Worker {
	if searcher == nil {
		searcher = IoctlSearcher
	}
	return &Worker{
		registry: registry,
		searcher: searcher,
		args:     btrfsioctl.NewSearchArgs(),
	}
}

// InodeOf returns the inode number of an open file, as used for the
// objectid of its items in the subvolume tree.
func InodeOf(fh *os.File) (btrfsprim.ObjID, error) {
	conn, err := fh.SyscallConn()
	if err != nil {
		return 0, err
	}
	var st unix.Stat_t
	var statErr error
	if err := conn.Control(func(fd uintptr) {
		statErr = unix.Fstat(int(fd), &st)
	}); err != nil {
		return 0, err
	}
	if statErr != nil {
		return 0, &os.PathError{Op: "fstat", Path: fh.Name(), Err: statErr}
	}
	return btrfsprim.ObjID(st.Ino), nil
}

// ScanFile adds the regular file at path to w.Stats.
//
// The file is counted even if it then can't be opened.  If an error
// is returned, whatever extents were read before the error remain
// counted, as they have already been recorded in the registry.
func (w *Worker) ScanFile(ctx context.Context, path string) error {
	w.Stats.NFiles++

	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = fh.Close()
	}()
	ino, err := InodeOf(fh)
	if err != nil {
		return err
	}
	ctx = dlog.WithField(ctx, "compsize.inode", ino)

	w.args.SetFileExtentSearch(ino)
	cur := btrfsioctl.NewCursor(w.searcher(fh), w.args)
	for {
		item, err := cur.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%q: %w", path, err)
		}
		if w.addExtent(&item) {
			break
		}
	}
	dlog.Tracef(ctx, "%v searches", cur.Requests())
	return nil
}

// addExtent accounts for a single extent item, and reports whether
// it was the file's final one.
func (w *Worker) addExtent(item *btrfsioctl.FileExtentItem) (last bool) {
	comp := item.Compression()
	info := w.Stats.bucket(comp)
	defer func() { w.Stats.setBucket(comp, info) }()

	if item.Type() == btrfsitem.FILE_EXTENT_INLINE {
		// An inline extent is private to the file, and is the
		// file's only extent.
		info.DiskBytes += uint64(item.DiskNumBytes())
		info.UncompressedBytes += uint64(item.RAMBytes())
		info.ReferencedBytes += uint64(item.RAMBytes())
		w.Stats.NInline++
		return true
	}

	addr, _ := item.DiskByteNr()
	if w.registry.Insert(addr) {
		info.DiskBytes += uint64(item.DiskNumBytes())
		info.UncompressedBytes += uint64(item.RAMBytes())
		w.Stats.NExtents++
	}
	info.ReferencedBytes += uint64(item.NumBytes())
	w.Stats.NRefs++
	return false
}
