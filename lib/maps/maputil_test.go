// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package maps_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"git.lukeshu.com/btrfs-compsize/lib/maps"
)

func TestSortedKeys(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []uint8{0, 1, 3}, maps.SortedKeys(map[uint8]string{3: "zstd", 0: "none", 1: "zlib"}))
	assert.Empty(t, maps.SortedKeys(map[int]int(nil)))
	assert.ElementsMatch(t, []string{"a", "b"}, maps.Keys(map[string]bool{"a": true, "b": false}))
}
