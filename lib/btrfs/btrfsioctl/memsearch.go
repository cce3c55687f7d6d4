// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsioctl

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"git.lukeshu.com/btrfs-compsize/lib/binstruct"
	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsitem"
	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsprim"
)

// MemItem is an item stored in a MemTree.
type MemItem struct {
	Key     btrfsprim.Key
	TransID btrfsprim.Generation
	Body    []byte
}

// MemTree is a Searcher over an in-memory list of items, answering
// searches the way the kernel does: items are returned in key order,
// the result buffer is filled until the next item would not fit, and
// nothing indicates whether the search was cut short.
//
// It is safe for concurrent searches once it has been populated.
type MemTree struct {
	mu     sync.Mutex
	sorted bool
	items  []MemItem
	errs   map[btrfsprim.ObjID]error

	searches atomic.Int64
}

var _ Searcher = (*MemTree)(nil)

// Add inserts a raw item.
func (t *MemTree) Add(item MemItem) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, item)
	t.sorted = false
}

// AddFileExtent inserts an EXTENT_DATA item for the given inode and
// file offset.
func (t *MemTree) AddFileExtent(ino btrfsprim.ObjID, fileOffset uint64, extent btrfsitem.FileExtent) {
	body, err := binstruct.Marshal(extent)
	if err != nil {
		panic(fmt.Errorf("should not happen: %w", err))
	}
	t.Add(MemItem{
		Key: btrfsprim.Key{
			ObjectID: ino,
			ItemType: btrfsprim.EXTENT_DATA_KEY,
			Offset:   fileOffset,
		},
		TransID: extent.Generation,
		Body:    body,
	})
}

// SetError causes every search for items of the inode ino to fail
// with err.
func (t *MemTree) SetError(ino btrfsprim.ObjID, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.errs == nil {
		t.errs = make(map[btrfsprim.ObjID]error)
	}
	t.errs[ino] = err
}

// Searches returns the number of calls to TreeSearch so far.
func (t *MemTree) Searches() int { return int(t.searches.Load()) }

func (t *MemTree) sortedItems() []MemItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.sorted {
		sort.SliceStable(t.items, func(i, j int) bool {
			return t.items[i].Key.Compare(t.items[j].Key) < 0
		})
		t.sorted = true
	}
	return t.items
}

// TreeSearch implements Searcher.
func (t *MemTree) TreeSearch(args *SearchArgs) error {
	t.searches.Add(1)
	items := t.sortedItems()

	t.mu.Lock()
	err := t.errs[args.Key.MinObjectID]
	t.mu.Unlock()
	if err != nil {
		return err
	}

	bufSize := len(args.Buf)
	if args.BufSize < uint64(bufSize) {
		bufSize = int(args.BufSize)
	}
	minKey := btrfsprim.Key{
		ObjectID: args.Key.MinObjectID,
		ItemType: btrfsprim.ItemType(args.Key.MinType),
		Offset:   args.Key.MinOffset,
	}
	maxKey := btrfsprim.Key{
		ObjectID: args.Key.MaxObjectID,
		ItemType: btrfsprim.ItemType(args.Key.MaxType),
		Offset:   args.Key.MaxOffset,
	}

	beg := sort.Search(len(items), func(i int) bool {
		return items[i].Key.Compare(minKey) >= 0
	})
	var (
		pos      int
		numFound uint32
	)
	for _, item := range items[beg:] {
		if numFound >= args.Key.NrItems || item.Key.Compare(maxKey) > 0 {
			break
		}
		if item.TransID < args.Key.MinTransID || item.TransID > args.Key.MaxTransID {
			continue
		}
		need := searchHeaderSize + len(item.Body)
		if pos+need > bufSize {
			if numFound == 0 {
				args.BufSize = uint64(need)
				return unix.EOVERFLOW
			}
			break
		}
		hdr, err := binstruct.Marshal(SearchHeader{
			TransID:  binstruct.U64ne(item.TransID),
			ObjectID: binstruct.U64ne(item.Key.ObjectID),
			Offset:   binstruct.U64ne(item.Key.Offset),
			Type:     binstruct.U32ne(item.Key.ItemType),
			Len:      binstruct.U32ne(len(item.Body)),
		})
		if err != nil {
			return err
		}
		pos += copy(args.Buf[pos:], hdr)
		pos += copy(args.Buf[pos:], item.Body)
		numFound++
	}
	args.Key.NrItems = numFound
	return nil
}
