// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsprim

import (
	"fmt"
	"math"
)

// Key is the (objectid, type, offset) triple that sorts every item
// in a btree.
type Key struct {
	ObjectID ObjID
	ItemType ItemType
	Offset   uint64 // The meaning depends on the item type.
}

const MaxOffset uint64 = math.MaxUint64

// mimics print-tree.c:btrfs_print_key()
func (key Key) String() string {
	if key.Offset == MaxOffset {
		return fmt.Sprintf("(%d %v -1)", key.ObjectID, key.ItemType)
	}
	return fmt.Sprintf("(%d %v %d)", key.ObjectID, key.ItemType, key.Offset)
}

// Compare orders keys by object ID, then type, then offset.
func (a Key) Compare(b Key) int {
	switch {
	case a.ObjectID != b.ObjectID:
		return cmp(a.ObjectID, b.ObjectID)
	case a.ItemType != b.ItemType:
		return cmp(a.ItemType, b.ItemType)
	default:
		return cmp(a.Offset, b.Offset)
	}
}

func cmp[T ObjID | ItemType | uint64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
