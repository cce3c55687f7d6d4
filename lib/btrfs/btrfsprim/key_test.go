// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsprim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func k(objID ObjID, typ ItemType, offset uint64) Key {
	return Key{
		ObjectID: objID,
		ItemType: typ,
		Offset:   offset,
	}
}

func TestKeyString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "(257 EXTENT_DATA 4096)", k(257, EXTENT_DATA_KEY, 4096).String())
	assert.Equal(t, "(257 EXTENT_DATA -1)", k(257, EXTENT_DATA_KEY, MaxOffset).String())
	assert.Equal(t, "(257 INODE_ITEM 0)", k(257, INODE_ITEM_KEY, 0).String())
	assert.Equal(t, "(257 UNKNOWN.200 0)", k(257, 200, 0).String())
}

func TestKeyCompare(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, k(257, EXTENT_DATA_KEY, 0).Compare(k(257, EXTENT_DATA_KEY, 0)))
	assert.Equal(t, -1, k(257, EXTENT_DATA_KEY, 0).Compare(k(257, EXTENT_DATA_KEY, 1)))
	assert.Equal(t, 1, k(258, INODE_ITEM_KEY, 0).Compare(k(257, EXTENT_DATA_KEY, MaxOffset)))
	assert.Equal(t, -1, k(257, INODE_ITEM_KEY, MaxOffset).Compare(k(257, EXTENT_DATA_KEY, 0)))
}
