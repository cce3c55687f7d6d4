// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package btrfsitem holds the on-disk layouts of btrfs item bodies.
package btrfsitem

import (
	"fmt"

	"git.lukeshu.com/btrfs-compsize/lib/binstruct"
	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsprim"
	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsvol"
)

// key.objectid = inode
// key.offset = offset within file
type FileExtent struct { // complex EXTENT_DATA=108
	Generation btrfsprim.Generation `bin:"off=0x0, siz=0x8"` // transaction ID that created this extent
	RAMBytes   int64                `bin:"off=0x8, siz=0x8"` // upper bound of what compressed data will decompress to

	// 32 bits describing the data encoding
	Compression   CompressionType `bin:"off=0x10, siz=0x1"`
	Encryption    uint8           `bin:"off=0x11, siz=0x1"`
	OtherEncoding uint16          `bin:"off=0x12, siz=0x2"` // reserved for later use

	Type FileExtentType `bin:"off=0x14, siz=0x1"` // inline data or real extent

	binstruct.End `bin:"off=0x15"`

	// only one of these, depending on .Type
	BodyInline []byte           `bin:"-"` // .Type == FILE_EXTENT_INLINE
	BodyExtent FileExtentExtent `bin:"-"` // any other .Type
}

type FileExtentExtent struct {
	// Position and size of extent within the device
	DiskByteNr   btrfsvol.LogicalAddr `bin:"off=0x0, siz=0x8"`
	DiskNumBytes btrfsvol.AddrDelta   `bin:"off=0x8, siz=0x8"`

	// Position of data within the extent
	Offset btrfsvol.AddrDelta `bin:"off=0x10, siz=0x8"`

	// Decompressed/unencrypted size
	NumBytes int64 `bin:"off=0x18, siz=0x8"`

	binstruct.End `bin:"off=0x20"`
}

const (
	// FileExtentInlineOffset is where the inline data starts in an
	// inline item; it is also where .BodyExtent starts in a
	// non-inline item.
	FileExtentInlineOffset = 0x15
	// FileExtentSize is the size of a complete non-inline item.
	FileExtentSize = FileExtentInlineOffset + 0x20
)

// UnmarshalBinary decodes a file extent item.  For inline items,
// .BodyInline aliases dat rather than copying it; it is only valid
// for as long as dat is.
//
// Types other than inline are all decoded as having a .BodyExtent;
// that includes unrecognized types (see FileExtentType.Known).
func (o *FileExtent) UnmarshalBinary(dat []byte) (int, error) {
	n, err := binstruct.UnmarshalWithoutInterface(dat, o)
	if err != nil {
		return n, err
	}
	if o.Type == FILE_EXTENT_INLINE {
		o.BodyInline = dat[n:]
		return len(dat), nil
	}
	_n, err := binstruct.Unmarshal(dat[n:], &o.BodyExtent)
	n += _n
	return n, err
}

func (o FileExtent) MarshalBinary() ([]byte, error) {
	dat, err := binstruct.MarshalWithoutInterface(o)
	if err != nil {
		return dat, err
	}
	if o.Type == FILE_EXTENT_INLINE {
		return append(dat, o.BodyInline...), nil
	}
	bs, err := binstruct.Marshal(o.BodyExtent)
	return append(dat, bs...), err
}

type FileExtentType uint8

const (
	FILE_EXTENT_INLINE FileExtentType = iota
	FILE_EXTENT_REG
	FILE_EXTENT_PREALLOC

	FILE_EXTENT_UNKNOWN FileExtentType = 0xff
)

var fileExtentTypeNames = map[FileExtentType]string{
	FILE_EXTENT_INLINE:   "inline",
	FILE_EXTENT_REG:      "regular",
	FILE_EXTENT_PREALLOC: "prealloc",
}

// Known maps any type byte that isn't one of the known kinds to
// FILE_EXTENT_UNKNOWN.
func (fet FileExtentType) Known() FileExtentType {
	if _, ok := fileExtentTypeNames[fet]; ok {
		return fet
	}
	return FILE_EXTENT_UNKNOWN
}

func (fet FileExtentType) String() string {
	name, ok := fileExtentTypeNames[fet]
	if !ok {
		name = "unknown"
	}
	return fmt.Sprintf("%d (%s)", fet, name)
}

type CompressionType uint8

const (
	COMPRESS_NONE CompressionType = iota
	COMPRESS_ZLIB
	COMPRESS_LZO
	COMPRESS_ZSTD
)

var compressionTypeNames = []string{
	"none",
	"zlib",
	"lzo",
	"zstd",
}

// String returns the name that compsize uses for the algorithm, or
// "unknown(N)".
func (ct CompressionType) String() string {
	if int(ct) < len(compressionTypeNames) {
		return compressionTypeNames[ct]
	}
	return fmt.Sprintf("unknown(%d)", uint8(ct))
}
