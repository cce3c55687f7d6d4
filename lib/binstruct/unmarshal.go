// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package binstruct

import (
	"errors"
	"fmt"
	"reflect"
)

type Unmarshaler interface {
	UnmarshalBinary([]byte) (int, error)
}

// Unmarshal decodes dat into the object pointed to by dstPtr, and
// returns the number of bytes consumed.
func Unmarshal(dat []byte, dstPtr any) (int, error) {
	if unmar, ok := dstPtr.(Unmarshaler); ok {
		n, err := unmar.UnmarshalBinary(dat)
		if err != nil {
			err = &UnmarshalError{
				Type:   reflect.TypeOf(dstPtr),
				Method: "UnmarshalBinary",
				Err:    err,
			}
		}
		return n, err
	}
	return UnmarshalWithoutInterface(dat, dstPtr)
}

// UnmarshalWithoutInterface decodes dat according to the struct tags
// of *dstPtr, ignoring any UnmarshalBinary method that it has.  This
// is what custom UnmarshalBinary methods use to decode their fixed
// part.
func UnmarshalWithoutInterface(dat []byte, dstPtr any) (int, error) {
	ptr := reflect.ValueOf(dstPtr)
	if ptr.Kind() != reflect.Ptr {
		panic(&InvalidTypeError{
			Type: ptr.Type(),
			Err:  errors.New("not a pointer"),
		})
	}
	dst := ptr.Elem()

	switch dst.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Int64:
		tmp := reflect.New(intKind2Type[dst.Kind()])
		n, err := Unmarshal(dat, tmp.Interface())
		dst.Set(tmp.Elem().Convert(dst.Type()))
		return n, err
	case reflect.Array:
		var n int
		for i := 0; i < dst.Len(); i++ {
			_n, err := Unmarshal(dat[n:], dst.Index(i).Addr().Interface())
			n += _n
			if err != nil {
				return n, err
			}
		}
		return n, nil
	case reflect.Struct:
		return getSchema(dst.Type()).unmarshal(dat, dst)
	default:
		panic(&InvalidTypeError{
			Type: ptr.Type(),
			Err: fmt.Errorf("does not implement binstruct.Unmarshaler and kind=%v is not a supported statically-sized kind",
				dst.Kind()),
		})
	}
}
