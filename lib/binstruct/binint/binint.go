// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package binint provides fixed-width integer types with an explicit
// byte order, for use in binstruct schemas.
//
// The "le" types are little-endian, which is what btrfs uses for
// everything that is stored on disk.  The "ne" types are in the
// host's native byte order, which is what the kernel uses for the
// ioctl structures that it fills in itself (such as the tree-search
// result headers).
package binint

import (
	"encoding/binary"

	"git.lukeshu.com/btrfs-compsize/lib/binstruct/binutil"
)

type U8 uint8

func (U8) BinaryStaticSize() int            { return 1 }
func (x U8) MarshalBinary() ([]byte, error) { return []byte{byte(x)}, nil }
func (x *U8) UnmarshalBinary(dat []byte) (int, error) {
	if err := binutil.NeedNBytes(dat, 1); err != nil {
		return 0, err
	}
	*x = U8(dat[0])
	return 1, nil
}

// little endian ///////////////////////////////////////////////////////////////

type U16le uint16

func (U16le) BinaryStaticSize() int { return 2 }
func (x U16le) MarshalBinary() ([]byte, error) {
	return binary.LittleEndian.AppendUint16(nil, uint16(x)), nil
}

func (x *U16le) UnmarshalBinary(dat []byte) (int, error) {
	if err := binutil.NeedNBytes(dat, 2); err != nil {
		return 0, err
	}
	*x = U16le(binary.LittleEndian.Uint16(dat))
	return 2, nil
}

type U32le uint32

func (U32le) BinaryStaticSize() int { return 4 }
func (x U32le) MarshalBinary() ([]byte, error) {
	return binary.LittleEndian.AppendUint32(nil, uint32(x)), nil
}

func (x *U32le) UnmarshalBinary(dat []byte) (int, error) {
	if err := binutil.NeedNBytes(dat, 4); err != nil {
		return 0, err
	}
	*x = U32le(binary.LittleEndian.Uint32(dat))
	return 4, nil
}

type U64le uint64

func (U64le) BinaryStaticSize() int { return 8 }
func (x U64le) MarshalBinary() ([]byte, error) {
	return binary.LittleEndian.AppendUint64(nil, uint64(x)), nil
}

func (x *U64le) UnmarshalBinary(dat []byte) (int, error) {
	if err := binutil.NeedNBytes(dat, 8); err != nil {
		return 0, err
	}
	*x = U64le(binary.LittleEndian.Uint64(dat))
	return 8, nil
}

// native endian ///////////////////////////////////////////////////////////////

type U32ne uint32

func (U32ne) BinaryStaticSize() int { return 4 }
func (x U32ne) MarshalBinary() ([]byte, error) {
	return binary.NativeEndian.AppendUint32(nil, uint32(x)), nil
}

func (x *U32ne) UnmarshalBinary(dat []byte) (int, error) {
	if err := binutil.NeedNBytes(dat, 4); err != nil {
		return 0, err
	}
	*x = U32ne(binary.NativeEndian.Uint32(dat))
	return 4, nil
}

type U64ne uint64

func (U64ne) BinaryStaticSize() int { return 8 }
func (x U64ne) MarshalBinary() ([]byte, error) {
	return binary.NativeEndian.AppendUint64(nil, uint64(x)), nil
}

func (x *U64ne) UnmarshalBinary(dat []byte) (int, error) {
	if err := binutil.NeedNBytes(dat, 8); err != nil {
		return 0, err
	}
	*x = U64ne(binary.NativeEndian.Uint64(dat))
	return 8, nil
}

// signed ///////////////////////////////////////////////////////////////////////

type I64le int64

func (I64le) BinaryStaticSize() int { return 8 }
func (x I64le) MarshalBinary() ([]byte, error) {
	return binary.LittleEndian.AppendUint64(nil, uint64(x)), nil
}

func (x *I64le) UnmarshalBinary(dat []byte) (int, error) {
	if err := binutil.NeedNBytes(dat, 8); err != nil {
		return 0, err
	}
	*x = I64le(binary.LittleEndian.Uint64(dat))
	return 8, nil
}
