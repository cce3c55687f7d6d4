// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsioctl

import (
	"fmt"
	"io"
	"math"

	"git.lukeshu.com/btrfs-compsize/lib/binstruct"
	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsitem"
	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsprim"
	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsvol"
)

// A Cursor iterates over the items selected by a SearchArgs' key,
// re-issuing the search as needed when the kernel had more items than
// would fit in the buffer.
//
// The Cursor mutates the SearchArgs; the SearchArgs must not be used
// for anything else until the Cursor is done.
type Cursor struct {
	searcher Searcher
	args     *SearchArgs
	inode    btrfsprim.ObjID

	pos  int // into args.Buf; <0 means "needs refill"
	reqs int
	err  error
}

// NewCursor returns a Cursor over args, which should already have its
// key set (for instance by SetFileExtentSearch).  No search is issued
// until the first call to Next.
func NewCursor(searcher Searcher, args *SearchArgs) *Cursor {
	return &Cursor{
		searcher: searcher,
		args:     args,
		inode:    args.Key.MinObjectID,
		pos:      -1,
	}
}

// Requests returns the number of searches that the Cursor has issued.
func (c *Cursor) Requests() int { return c.reqs }

func (c *Cursor) bufLen() int {
	if c.args.BufSize < uint64(len(c.args.Buf)) {
		return int(c.args.BufSize)
	}
	return len(c.args.Buf)
}

func (c *Cursor) malformed(pos int, format string, args ...any) error {
	c.err = &MalformedItemError{
		Inode: c.inode,
		Pos:   pos,
		Err:   fmt.Errorf(format, args...),
	}
	return c.err
}

// Next returns the next item.  It returns io.EOF when there are no
// more items.  Once Next has returned an error, it will keep
// returning that same error.
//
// The returned item refers to memory in the SearchArgs buffer, which
// is overwritten when the Cursor re-issues the search; it must not be
// used after the following call to Next.
func (c *Cursor) Next() (FileExtentItem, error) {
	if c.err != nil {
		return FileExtentItem{}, c.err
	}
	if c.pos < 0 {
		c.reqs++
		if err := c.searcher.TreeSearch(c.args); err != nil {
			c.err = &SearchError{Inode: c.inode, Err: err}
			return FileExtentItem{}, c.err
		}
		c.pos = 0
	}
	if c.args.Key.NrItems == 0 {
		c.err = io.EOF
		return FileExtentItem{}, c.err
	}

	bufLen := c.bufLen()
	pos := c.pos
	if pos+searchHeaderSize > bufLen {
		return FileExtentItem{}, c.malformed(pos, "header overruns the buffer (%d bytes)", bufLen)
	}
	var hdr SearchHeader
	if _, err := binstruct.Unmarshal(c.args.Buf[pos:pos+searchHeaderSize], &hdr); err != nil {
		return FileExtentItem{}, c.malformed(pos, "header: %w", err)
	}
	bodyBeg := pos + searchHeaderSize
	bodyEnd := bodyBeg + int(hdr.Len)
	if bodyEnd > bufLen {
		return FileExtentItem{}, c.malformed(pos, "item %v body length %d overruns the buffer (%d bytes)",
			hdr.Key(), hdr.Len, bufLen)
	}
	if key := hdr.Key(); key.ObjectID != c.inode || key.ItemType != btrfsprim.EXTENT_DATA_KEY {
		return FileExtentItem{}, c.malformed(pos, "unexpected item %v", key)
	}
	item := FileExtentItem{
		Header: hdr,
		dat:    c.args.Buf[bodyBeg:bodyEnd],
	}
	if err := item.check(); err != nil {
		return FileExtentItem{}, c.malformed(pos, "item %v: %w", hdr.Key(), err)
	}

	c.pos = bodyEnd
	c.args.Key.NrItems--
	if c.args.Key.NrItems == 0 && bufLen-c.pos < typicalItemSize && uint64(hdr.Offset) < c.args.Key.MaxOffset {
		// The kernel stops when the next item would not fit,
		// without telling us that it did so.  If there wasn't
		// room for another item, assume that there are more, and
		// ask again starting just after this one.  If there
		// aren't any, the next search returns zero items.
		c.args.Key.MinOffset = uint64(hdr.Offset) + 1
		c.args.Key.NrItems = math.MaxUint32
		c.pos = -1
	}
	return item, nil
}

// FileExtentItem is a lazily-decoded view of a single EXTENT_DATA
// item in a SearchArgs buffer.  The body is decoded on first access
// to any field.
type FileExtentItem struct {
	Header SearchHeader

	dat     []byte
	decoded bool
	body    btrfsitem.FileExtent
}

// check verifies that the body is long enough to be decoded, so that
// the accessors never fail.
func (item *FileExtentItem) check() error {
	if len(item.dat) < btrfsitem.FileExtentInlineOffset {
		return fmt.Errorf("body is %d bytes, need at least %d", len(item.dat), btrfsitem.FileExtentInlineOffset)
	}
	typ := btrfsitem.FileExtentType(item.dat[0x14])
	if typ != btrfsitem.FILE_EXTENT_INLINE && len(item.dat) < btrfsitem.FileExtentSize {
		return fmt.Errorf("%v extent body is %d bytes, need at least %d", typ, len(item.dat), btrfsitem.FileExtentSize)
	}
	return nil
}

func (item *FileExtentItem) get() *btrfsitem.FileExtent {
	if !item.decoded {
		if _, err := binstruct.Unmarshal(item.dat, &item.body); err != nil {
			panic(fmt.Errorf("should not happen: FileExtentItem: %w", err))
		}
		item.decoded = true
	}
	return &item.body
}

func (item *FileExtentItem) Key() btrfsprim.Key { return item.Header.Key() }

func (item *FileExtentItem) Generation() btrfsprim.Generation { return item.get().Generation }
func (item *FileExtentItem) RAMBytes() int64 { return item.get().RAMBytes }
func (item *FileExtentItem) Encryption() uint8 { return item.get().Encryption }

func (item *FileExtentItem) Compression() btrfsitem.CompressionType {
	return item.get().Compression
}

// Type returns the extent type, with unrecognized values normalized
// to FILE_EXTENT_UNKNOWN.
func (item *FileExtentItem) Type() btrfsitem.FileExtentType {
	return item.get().Type.Known()
}

// DiskByteNr returns the logical address of the on-disk extent.  ok
// is false for inline extents, which have no address.  A regular
// extent with address 0 is a hole.
func (item *FileExtentItem) DiskByteNr() (addr btrfsvol.LogicalAddr, ok bool) {
	body := item.get()
	if body.Type == btrfsitem.FILE_EXTENT_INLINE {
		return 0, false
	}
	return body.BodyExtent.DiskByteNr, true
}

// DiskNumBytes returns the on-disk size of the extent.  For inline
// extents, this is the size of the inline data.
func (item *FileExtentItem) DiskNumBytes() int64 {
	body := item.get()
	if body.Type == btrfsitem.FILE_EXTENT_INLINE {
		return int64(len(body.BodyInline))
	}
	return int64(body.BodyExtent.DiskNumBytes)
}

// Offset returns the offset into the (uncompressed) extent at which
// the file's data begins.  ok is false for inline extents.
func (item *FileExtentItem) Offset() (delta btrfsvol.AddrDelta, ok bool) {
	body := item.get()
	if body.Type == btrfsitem.FILE_EXTENT_INLINE {
		return 0, false
	}
	return body.BodyExtent.Offset, true
}

// NumBytes returns the number of bytes of the file's data that the
// extent provides.
func (item *FileExtentItem) NumBytes() int64 {
	body := item.get()
	if body.Type == btrfsitem.FILE_EXTENT_INLINE {
		return body.RAMBytes
	}
	return body.BodyExtent.NumBytes
}

// FileExtent returns a decoded copy of the item that does not refer
// to the search buffer.
func (item *FileExtentItem) FileExtent() btrfsitem.FileExtent {
	ret := *item.get()
	if ret.BodyInline != nil {
		ret.BodyInline = append([]byte(nil), ret.BodyInline...)
	}
	return ret
}
