// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package binstruct decodes and encodes fixed-layout binary
// structures described by struct tags, rather than by overlaying Go
// memory on top of foreign bytes.
//
// Each field of a struct is annotated with its byte offset and size:
//
//	type Thing struct {
//		A             uint64 `bin:"off=0x0, siz=0x8"`
//		B             uint8  `bin:"off=0x8, siz=0x1"`
//		binstruct.End `bin:"off=0x9"`
//	}
//
// Plain Go integer kinds are little-endian; use the binint "ne"
// types for fields in the host's native byte order.  Fields tagged
// `bin:"-"` are skipped, and are typically filled in by a custom
// UnmarshalBinary method that wraps UnmarshalWithoutInterface.
package binstruct

import (
	"reflect"

	"git.lukeshu.com/btrfs-compsize/lib/binstruct/binint"
)

type (
	U8    = binint.U8
	U16le = binint.U16le
	U32le = binint.U32le
	U64le = binint.U64le
	I64le = binint.I64le
	U32ne = binint.U32ne
	U64ne = binint.U64ne
)

var intKind2Type = map[reflect.Kind]reflect.Type{
	reflect.Uint8:  reflect.TypeOf(U8(0)),
	reflect.Uint16: reflect.TypeOf(U16le(0)),
	reflect.Uint32: reflect.TypeOf(U32le(0)),
	reflect.Uint64: reflect.TypeOf(U64le(0)),
	reflect.Int64:  reflect.TypeOf(I64le(0)),
}
