// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsprim

import (
	"math"
)

// ObjID is the object-ID part of a key.  In a subvolume tree, the
// object ID of an inode's items is the inode number.
type ObjID uint64

const (
	FS_TREE_OBJECTID ObjID = 5 // one per subvolume, storing files and directories

	// All files have objectids in this range.
	FIRST_FREE_OBJECTID ObjID = 256
	LAST_FREE_OBJECTID  ObjID = math.MaxUint64 - 255
)
