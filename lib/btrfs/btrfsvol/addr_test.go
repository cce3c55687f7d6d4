// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsvol_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsvol"
)

func TestAddrFormat(t *testing.T) {
	t.Parallel()
	type TestCase struct {
		Input    any
		InputFmt string
		Output   string
	}
	addr := btrfsvol.LogicalAddr(0x1e5c0000)
	testcases := map[string]TestCase{
		"v":     {Input: addr, InputFmt: "%v", Output: "0x000000001e5c0000"},
		"s":     {Input: addr, InputFmt: "%s", Output: "0x000000001e5c0000"},
		"q":     {Input: addr, InputFmt: "%q", Output: `"0x000000001e5c0000"`},
		"x":     {Input: addr, InputFmt: "%x", Output: "1e5c0000"},
		"d":     {Input: addr, InputFmt: "%d", Output: "509345792"},
		"delta": {Input: btrfsvol.AddrDelta(4096), InputFmt: "%v", Output: "0x0000000000001000"},
	}
	for tcName, tc := range testcases {
		tc := tc
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.Output, fmt.Sprintf(tc.InputFmt, tc.Input))
		})
	}
}

func TestAddrArithmetic(t *testing.T) {
	t.Parallel()
	a := btrfsvol.LogicalAddr(0x10000)
	b := a.Add(0x3000)
	assert.Equal(t, btrfsvol.LogicalAddr(0x13000), b)
	assert.Equal(t, btrfsvol.AddrDelta(0x3000), b.Sub(a))
}
