// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"git.lukeshu.com/btrfs-compsize/lib/btrfs/btrfsioctl"
	"git.lukeshu.com/btrfs-compsize/lib/compsize"
	"git.lukeshu.com/btrfs-compsize/lib/textui"
)

func newDumpExtentsCommand(searcher compsize.SearcherFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "dump-extents FILE...",
		Short: "Spew the file extent items of files, as parsed",
		Args:  cliutil.WrapPositionalArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			var failed bool
			for _, path := range args {
				if err := dumpExtents(out, searcher, path); err != nil {
					dlog.Errorf(dlog.WithField(ctx, "compsize.path", path), "%v", err)
					failed = true
				}
			}
			if failed {
				return errors.New("some files could not be dumped")
			}
			return nil
		},
	}
}

func dumpExtents(out io.Writer, searcher compsize.SearcherFunc, path string) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = fh.Close()
	}()
	ino, err := compsize.InodeOf(fh)
	if err != nil {
		return err
	}

	spew := spew.NewDefaultConfig()
	spew.DisablePointerAddresses = true
	spew.DisableCapacities = true

	args := btrfsioctl.NewSearchArgs()
	args.SetFileExtentSearch(ino)
	cur := btrfsioctl.NewCursor(searcher(fh), args)
	fmt.Fprintf(out, "%s: inode %d\n", path, ino)
	for {
		item, err := cur.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		textui.Fprintf(out, "%v = ", item.Key())
		spew.Fdump(out, item.FileExtent())
	}
	_, err = fmt.Fprintf(out, "%s: %d searches\n\n", path, cur.Requests())
	return err
}
