// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package btrfsvol holds the address types of the btrfs logical
// address space.
package btrfsvol

import (
	"fmt"

	"git.lukeshu.com/btrfs-compsize/lib/fmtutil"
)

type (
	// LogicalAddr is a byte address in the filesystem-wide logical
	// address space; a data extent's disk_bytenr is one of these, and
	// it is what identifies a physical extent.
	LogicalAddr int64
	// AddrDelta is a byte count or offset in that address space.
	AddrDelta int64
)

func formatAddr(addr int64, f fmt.State, verb rune) {
	switch verb {
	case 'v', 's', 'q':
		str := fmt.Sprintf("%#016x", addr)
		fmt.Fprintf(f, fmtutil.FmtStateString(f, verb), str)
	default:
		fmt.Fprintf(f, fmtutil.FmtStateString(f, verb), addr)
	}
}

func (a LogicalAddr) Format(f fmt.State, verb rune) { formatAddr(int64(a), f, verb) }
func (d AddrDelta) Format(f fmt.State, verb rune)   { formatAddr(int64(d), f, verb) }

func (a LogicalAddr) Sub(b LogicalAddr) AddrDelta { return AddrDelta(a - b) }
func (a LogicalAddr) Add(b AddrDelta) LogicalAddr { return a + LogicalAddr(b) }
