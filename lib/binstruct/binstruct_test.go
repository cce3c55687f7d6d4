// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package binstruct_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.lukeshu.com/btrfs-compsize/lib/binstruct"
)

type pair struct {
	A             uint32 `bin:"off=0x0, siz=0x4"`
	B             uint16 `bin:"off=0x4, siz=0x2"`
	binstruct.End `bin:"off=0x6"`
}

func TestSmoke(t *testing.T) {
	t.Parallel()
	type thing struct {
		Magic         [4]byte         `bin:"off=0x0, siz=0x4"`
		Pairs         [2]pair         `bin:"off=0x4, siz=0xc"`
		Gen           int64           `bin:"off=0x10, siz=0x8"`
		Host          binstruct.U64ne `bin:"off=0x18, siz=0x8"`
		Note          string          `bin:"-"`
		binstruct.End `bin:"off=0x20"`
	}
	in := thing{
		Magic: [4]byte{'c', 'm', 'p', 's'},
		Pairs: [2]pair{{A: 1, B: 2}, {A: 0x01020304, B: 0x0506}},
		Gen:   -2,
		Host:  0x1122334455667788,
		Note:  "not encoded",
	}
	assert.Equal(t, 0x20, binstruct.StaticSize(in))

	dat, err := binstruct.Marshal(in)
	require.NoError(t, err)
	require.Len(t, dat, 0x20)
	assert.Equal(t, []byte("cmps"), dat[:4])
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01, 0x06, 0x05}, dat[0xa:0x10])
	assert.Equal(t, uint64(0x1122334455667788), binary.NativeEndian.Uint64(dat[0x18:]))

	var out thing
	n, err := binstruct.Unmarshal(dat, &out)
	require.NoError(t, err)
	assert.Equal(t, 0x20, n)
	in.Note = ""
	assert.Equal(t, in, out)
}

func TestUnmarshalShort(t *testing.T) {
	t.Parallel()
	var out pair
	_, err := binstruct.Unmarshal([]byte{1, 2, 3}, &out)
	assert.Error(t, err)
}

func TestBadSchema(t *testing.T) {
	t.Parallel()
	type gap struct {
		A             uint32 `bin:"off=0x0, siz=0x4"`
		B             uint32 `bin:"off=0x8, siz=0x4"`
		binstruct.End `bin:"off=0xc"`
	}
	type wrongSize struct {
		A             uint32 `bin:"off=0x0, siz=0x8"`
		binstruct.End `bin:"off=0x8"`
	}
	type noEnd struct {
		A uint32 `bin:"off=0x0, siz=0x4"`
	}
	assert.Panics(t, func() { binstruct.StaticSize(gap{}) })
	assert.Panics(t, func() { binstruct.StaticSize(wrongSize{}) })
	assert.Panics(t, func() { binstruct.StaticSize(noEnd{}) })
	assert.Panics(t, func() { binstruct.StaticSize("") })
}
