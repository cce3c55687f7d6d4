// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package containers implements generic (type-parameterized)
// container types.
package containers

import (
	"io"

	"git.lukeshu.com/go/lowmemjson"
	"golang.org/x/exp/constraints"

	"git.lukeshu.com/btrfs-compsize/lib/maps"
)

// Set is an unordered set.  It is not safe for concurrent use.
type Set[T constraints.Ordered] map[T]struct{}

var _ lowmemjson.Encodable = Set[int]{}

// EncodeJSON encodes the set as a sorted array.
func (o Set[T]) EncodeJSON(w io.Writer) error {
	return lowmemjson.Encode(w, maps.SortedKeys(o))
}

// Insert adds v to the set, and reports whether it was not already
// present.
func (o Set[T]) Insert(v T) bool {
	if _, ok := o[v]; ok {
		return false
	}
	o[v] = struct{}{}
	return true
}

func (o Set[T]) Has(v T) bool {
	_, ok := o[v]
	return ok
}

func (o Set[T]) InsertFrom(p Set[T]) {
	for v := range p {
		o[v] = struct{}{}
	}
}

func (o Set[T]) Delete(v T) {
	if o == nil {
		return
	}
	delete(o, v)
}
