// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsprim

import (
	"fmt"
)

type ItemType uint8

const (
	INODE_ITEM_KEY  ItemType = 1
	EXTENT_DATA_KEY ItemType = 108
)

var itemTypeNames = map[ItemType]string{
	INODE_ITEM_KEY:  "INODE_ITEM",
	EXTENT_DATA_KEY: "EXTENT_DATA",
}

func (t ItemType) String() string {
	if name, ok := itemTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN.%d", uint8(t))
}
