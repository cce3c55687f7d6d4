// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package btrfsprim holds the primitive types that btrfs keys and
// items are made of.
package btrfsprim

// Generation is a transaction ID.
type Generation uint64
