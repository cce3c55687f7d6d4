// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsioctl

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsprim"
)

const btrfsIoctlMagic = 0x94

// The generic Linux _IOC encoding (x86, arm, riscv, ...).
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

// IOC_TREE_SEARCH_V2 is BTRFS_IOC_TREE_SEARCH_V2.  The size encoded in
// the request number is that of the C struct, in which the buffer is
// a flexible array member, so only the key and buf_size count.
var IOC_TREE_SEARCH_V2 = ioc(iocRead|iocWrite, btrfsIoctlMagic, 17,
	unsafe.Offsetof(SearchArgs{}.Buf))

// A Searcher executes tree searches.
type Searcher interface {
	// TreeSearch fills args.Buf with as many items matching args.Key
	// as fit, and sets args.Key.NrItems to the number of items
	// written.
	TreeSearch(args *SearchArgs) error
}

// FileSearcher runs tree searches against the subvolume containing an
// open file, using the BTRFS_IOC_TREE_SEARCH_V2 ioctl.  This requires
// CAP_SYS_ADMIN.
type FileSearcher struct {
	File *os.File
}

var _ Searcher = FileSearcher{}

// TreeSearch implements Searcher.
func (s FileSearcher) TreeSearch(args *SearchArgs) error {
	conn, err := s.File.SyscallConn()
	if err != nil {
		return err
	}
	var errno unix.Errno
	if err := conn.Control(func(fd uintptr) {
		_, _, errno = unix.Syscall(unix.SYS_IOCTL, fd, IOC_TREE_SEARCH_V2, uintptr(unsafe.Pointer(args)))
	}); err != nil {
		return err
	}
	if errno != 0 {
		return errno
	}
	return nil
}

// SearchError is returned when a tree search fails.  The underlying
// error is usually a unix.Errno: ENOTTY if the file is not on btrfs,
// EPERM without CAP_SYS_ADMIN.
type SearchError struct {
	Inode btrfsprim.ObjID
	Err   error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("tree search for extents of inode %v: %v", e.Inode, e.Err)
}
func (e *SearchError) Unwrap() error { return e.Err }

// MalformedItemError is returned when an item in the result buffer
// does not fit within the buffer, or is not a plausible file extent.
type MalformedItemError struct {
	Inode btrfsprim.ObjID
	Pos   int // within the result buffer
	Err   error
}

func (e *MalformedItemError) Error() string {
	return fmt.Sprintf("malformed search result for inode %v at buffer offset %#x: %v", e.Inode, e.Pos, e.Err)
}
func (e *MalformedItemError) Unwrap() error { return e.Err }
