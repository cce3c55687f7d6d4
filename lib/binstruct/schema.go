// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package binstruct

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"git.lukeshu.com/go/typedsync"

	"git.lukeshu.com/btrfs-compsize/lib/binstruct/binutil"
)

// End marks the end of a struct; its offset declares the total size
// of the struct.
type End struct{}

var endType = reflect.TypeOf(End{})

type fieldTag struct {
	skip bool
	off  int
	siz  int
}

func parseFieldTag(str string) (fieldTag, error) {
	var ret fieldTag
	for _, part := range strings.Split(str, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
			continue
		case part == "-":
			return fieldTag{skip: true}, nil
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return fieldTag{}, fmt.Errorf("option is not a key=value pair: %q", part)
		}
		num, err := strconv.ParseInt(val, 0, 0)
		if err != nil {
			return fieldTag{}, fmt.Errorf("option %q: %w", key, err)
		}
		switch key {
		case "off":
			ret.off = int(num)
		case "siz":
			ret.siz = int(num)
		default:
			return fieldTag{}, fmt.Errorf("unrecognized option %q", key)
		}
	}
	return ret, nil
}

type schemaField struct {
	idx  int
	name string
	fieldTag
}

// schema is the compiled layout of a struct type.
type schema struct {
	name   string
	size   int
	fields []schemaField // excludes skipped fields
}

func (s *schema) errorf(f schemaField, format string, args ...any) error {
	return fmt.Errorf("struct %q field %v %q: %w",
		s.name, f.idx, f.name, fmt.Errorf(format, args...))
}

func (s *schema) unmarshal(dat []byte, dst reflect.Value) (int, error) {
	if err := binutil.NeedNBytes(dat, s.size); err != nil {
		return 0, fmt.Errorf("struct %q %w", s.name, err)
	}
	for _, f := range s.fields {
		n, err := Unmarshal(dat[f.off:f.off+f.siz], dst.Field(f.idx).Addr().Interface())
		if err != nil {
			return f.off + max(n, 0), s.errorf(f, "%w", err)
		}
		if n != f.siz {
			return f.off + n, s.errorf(f, "consumed %v bytes but should have consumed %v bytes", n, f.siz)
		}
	}
	return s.size, nil
}

func (s *schema) marshal(val reflect.Value) ([]byte, error) {
	ret := make([]byte, 0, s.size)
	for _, f := range s.fields {
		bs, err := Marshal(val.Field(f.idx).Interface())
		ret = append(ret, bs...)
		if err != nil {
			return ret, s.errorf(f, "%w", err)
		}
	}
	return ret, nil
}

func compileSchema(typ reflect.Type) (*schema, error) {
	ret := &schema{
		name: typ.String(),
	}
	endOffset := -1
	for i := 0; i < typ.NumField(); i++ {
		fieldInfo := typ.Field(i)
		f := schemaField{idx: i, name: fieldInfo.Name}

		if fieldInfo.Anonymous && fieldInfo.Type != endType {
			return nil, ret.errorf(f, "binstruct does not support embedded fields")
		}

		var err error
		f.fieldTag, err = parseFieldTag(fieldInfo.Tag.Get("bin"))
		if err != nil {
			return nil, ret.errorf(f, "%w", err)
		}
		if f.skip {
			continue
		}
		if f.off != ret.size {
			return nil, ret.errorf(f, "tag says off=%#x but the previous field ended at %#x", f.off, ret.size)
		}
		if fieldInfo.Type == endType {
			endOffset = f.off
			continue
		}
		fieldSize, err := staticSize(fieldInfo.Type)
		if err != nil {
			return nil, ret.errorf(f, "%w", err)
		}
		if f.siz != fieldSize {
			return nil, ret.errorf(f, "tag says siz=%#x but StaticSize(typ)=%#x", f.siz, fieldSize)
		}
		ret.size += f.siz
		ret.fields = append(ret.fields, f)
	}
	if endOffset != ret.size {
		return nil, fmt.Errorf("struct %q: binstruct.End is at %v, but fields end at %v",
			ret.name, endOffset, ret.size)
	}
	return ret, nil
}

// Extent items are decoded concurrently by every walker goroutine, so
// the schema cache must be safe for concurrent use.
var schemaCache typedsync.Map[reflect.Type, *schema]

func getSchema(typ reflect.Type) *schema {
	if s, ok := schemaCache.Load(typ); ok {
		return s
	}
	s, err := compileSchema(typ)
	if err != nil {
		panic(&InvalidTypeError{
			Type: typ,
			Err:  err,
		})
	}
	s, _ = schemaCache.LoadOrStore(typ, s)
	return s
}
