// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsioctl

import (
	"math"

	"git.lukeshu.com/btrfs-compsize/lib/binstruct"
	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsitem"
	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsprim"
)

// SearchKey is `struct btrfs_ioctl_search_key`.  It is handed to the
// kernel by address, so its Go layout must match the C layout
// exactly; every field is naturally aligned, so it does.
type SearchKey struct {
	TreeID btrfsprim.ObjID // 0 means "the subvolume that the fd is in"

	MinObjectID btrfsprim.ObjID
	MaxObjectID btrfsprim.ObjID

	MinOffset uint64
	MaxOffset uint64

	MinTransID btrfsprim.Generation
	MaxTransID btrfsprim.Generation

	MinType uint32
	MaxType uint32

	// In: the maximum number of items to return.
	// Out: the number of items returned.
	NrItems uint32

	_ uint32
	_ [4]uint64
}

// SearchBufSize is the capacity of the result buffer in SearchArgs.
// The kernel would accept up to 16MiB, but 64KiB holds ~770 regular
// extent items per call.
const SearchBufSize = 64 * 1024

// SearchArgs is `struct btrfs_ioctl_search_args_v2` with a fixed-size
// result buffer.  It is large; a goroutine that searches many files
// should allocate one and reuse it.
type SearchArgs struct {
	Key     SearchKey
	BufSize uint64
	Buf     [SearchBufSize]byte
}

// NewSearchArgs allocates a SearchArgs set up to search for nothing
// in particular; call SetFileExtentSearch before use.
func NewSearchArgs() *SearchArgs {
	args := new(SearchArgs)
	args.BufSize = SearchBufSize
	return args
}

// SetFileExtentSearch resets the search key to select every
// EXTENT_DATA item of the inode ino, regardless of file offset or
// transaction ID.  The contents of the buffer are left alone.
func (args *SearchArgs) SetFileExtentSearch(ino btrfsprim.ObjID) {
	args.BufSize = SearchBufSize
	args.Key = SearchKey{
		TreeID: 0,

		MinObjectID: ino,
		MaxObjectID: ino,

		MinOffset: 0,
		MaxOffset: math.MaxUint64,

		MinTransID: 0,
		MaxTransID: math.MaxUint64,

		MinType: uint32(btrfsprim.EXTENT_DATA_KEY),
		MaxType: uint32(btrfsprim.EXTENT_DATA_KEY),

		NrItems: math.MaxUint32,
	}
}

// SearchHeader is `struct btrfs_ioctl_search_header`, which precedes
// each item in the result buffer.  The kernel fills it in in the
// host's byte order (unlike the item bodies, which are copied
// verbatim from the little-endian on-disk leaves).
type SearchHeader struct {
	TransID       binstruct.U64ne `bin:"off=0x0, siz=0x8"`
	ObjectID      binstruct.U64ne `bin:"off=0x8, siz=0x8"`
	Offset        binstruct.U64ne `bin:"off=0x10, siz=0x8"`
	Type          binstruct.U32ne `bin:"off=0x18, siz=0x4"`
	Len           binstruct.U32ne `bin:"off=0x1c, siz=0x4"` // of the item body that follows
	binstruct.End `bin:"off=0x20"`
}

var searchHeaderSize = binstruct.StaticSize(SearchHeader{})

// Key returns the key of the item that the header describes.
func (h SearchHeader) Key() btrfsprim.Key {
	return btrfsprim.Key{
		ObjectID: btrfsprim.ObjID(h.ObjectID),
		ItemType: btrfsprim.ItemType(h.Type),
		Offset:   uint64(h.Offset),
	}
}

// typicalItemSize is the buffer space used by a non-inline extent
// item.  All non-inline items are exactly this size.  Inline items
// may be larger, but a file with an inline extent has no other
// extents.
//
// If a future on-disk format adds variable-length non-inline
// extents, the truncation check in Cursor.Next will need to be
// revisited: it assumes that if this much space is left over, the
// kernel would have used it.
var typicalItemSize = searchHeaderSize + btrfsitem.FileExtentSize
