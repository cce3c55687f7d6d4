// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"git.lukeshu.com/go/lowmemjson"
	"github.com/dustin/go-humanize"

	"git.lukeshu.com/btrfs-compsize/lib/compsize"
)

func percent(info compsize.ExtentInfo) string {
	if info.ReferencedBytes == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", float64(info.DiskBytes)*100/float64(info.ReferencedBytes))
}

func writeTable(w io.Writer, stats compsize.Statistic, rawBytes bool) error {
	size := humanize.IBytes
	if rawBytes {
		size = func(n uint64) string { return strconv.FormatUint(n, 10) }
	}
	row := func(typ, perc, disk, uncomp, ref string) {
		fmt.Fprintf(w, "%-10s %-8s %-12s %-12s %-12s\n", typ, perc, disk, uncomp, ref)
	}
	infoRow := func(typ string, info compsize.ExtentInfo) {
		row(typ, percent(info), size(info.DiskBytes), size(info.UncompressedBytes), size(info.ReferencedBytes))
	}

	buf := bufio.NewWriter(w)
	w = buf
	// Counts are plain integers, without digit grouping.
	fmt.Fprintf(w, "Processed %d files, %d regular extents (%d refs), %d inline.\n",
		stats.NFiles, stats.NExtents, stats.NRefs, stats.NInline)
	if stats.NErrors > 0 {
		fmt.Fprintf(w, "Encountered %d errors.\n", stats.NErrors)
	}
	row("Type", "Perc", "Disk Usage", "Uncompressed", "Referenced")
	infoRow("TOTAL", stats.Total())
	for _, comp := range stats.SortedCompressions() {
		infoRow(comp.String(), stats.Extents[comp])
	}
	return buf.Flush()
}

type jsonInfo struct {
	DiskBytes         uint64 `json:"disk_bytes"`
	UncompressedBytes uint64 `json:"uncompressed_bytes"`
	ReferencedBytes   uint64 `json:"referenced_bytes"`
}

type jsonBucket struct {
	Type string `json:"type"`
	jsonInfo
}

type jsonReport struct {
	Files       uint64       `json:"files"`
	Extents     uint64       `json:"regular_extents"`
	Refs        uint64       `json:"refs"`
	Inline      uint64       `json:"inline"`
	Errors      uint64       `json:"errors"`
	Total       jsonInfo     `json:"total"`
	Compression []jsonBucket `json:"compression"`
}

func toJSONInfo(info compsize.ExtentInfo) jsonInfo {
	return jsonInfo{
		DiskBytes:         info.DiskBytes,
		UncompressedBytes: info.UncompressedBytes,
		ReferencedBytes:   info.ReferencedBytes,
	}
}

func writeJSON(w io.Writer, stats compsize.Statistic) (err error) {
	report := jsonReport{
		Files:       stats.NFiles,
		Extents:     stats.NExtents,
		Refs:        stats.NRefs,
		Inline:      stats.NInline,
		Errors:      stats.NErrors,
		Total:       toJSONInfo(stats.Total()),
		Compression: make([]jsonBucket, 0, len(stats.Extents)),
	}
	for _, comp := range stats.SortedCompressions() {
		report.Compression = append(report.Compression, jsonBucket{
			Type:     comp.String(),
			jsonInfo: toJSONInfo(stats.Extents[comp]),
		})
	}

	buffer := bufio.NewWriter(w)
	defer func() {
		if _err := buffer.Flush(); err == nil && _err != nil {
			err = _err
		}
	}()
	return lowmemjson.Encode(&lowmemjson.ReEncoder{
		Out: buffer,

		Indent:                "\t",
		ForceTrailingNewlines: true,
	}, report)
}
