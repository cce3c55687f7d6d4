// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Command btrfs-compsize reports the compression ratio and the
// shared-extent savings for files on a btrfs filesystem.
package main

import (
	"context"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"git.lukeshu.com/btrfs-compsize/lib/compsize"
	"git.lukeshu.com/btrfs-compsize/lib/profile"
	"git.lukeshu.com/btrfs-compsize/lib/textui"
)

func main() {
	argparser, stopProfiling := newCommand(compsize.IoctlSearcher)
	err := argparser.ExecuteContext(context.Background())
	if _err := stopProfiling(); _err != nil && err == nil {
		err = _err
	}
	if err != nil {
		textui.Fprintf(os.Stderr, "%v: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}

func newCommand(searcher compsize.SearcherFunc) (*cobra.Command, profile.StopFunc) {
	logLevelFlag := textui.LogLevelFlag{
		Level: dlog.LogLevelInfo,
	}
	var (
		jobsFlag          int
		bytesFlag         bool
		oneFileSystemFlag bool
		jsonFlag          bool
		progressFlag      bool
	)

	argparser := &cobra.Command{
		Use:   "btrfs-compsize [flags] PATH...",
		Short: "Calculate the compression ratio of a set of files on btrfs",
		Long: heredoc.Doc(`
			Walk the given files and directories, and report how much disk
			space their data uses, grouped by compression algorithm.

			"Disk Usage" is the space taken on disk, after compression.
			"Uncompressed" is the size of that same data, uncompressed.
			"Referenced" is the amount of file data that refers to the
			extents; it is larger than "Uncompressed" when extents are
			shared (reflinks, snapshots, deduplication) or only partly
			used.  Extents shared between several of the given files are
			only counted once.

			Searching the filesystem trees requires CAP_SYS_ADMIN.

			The number of worker goroutines defaults to the value of the
			BTRFS_COMPSIZE_JOBS environment variable, or else is chosen
			based on the number of CPUs available.
		`),

		Args: cliutil.WrapPositionalArgs(cobra.MinimumNArgs(1)),

		SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
		SilenceUsage:  true, // our FlagErrorFunc will handle it

		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},

		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger := textui.NewLogger(cmd.ErrOrStderr(), logLevelFlag.Level)
			ctx := dlog.WithLogger(cmd.Context(), logger)
			dlog.SetFallbackLogger(logger.WithField("btrfs-compsize.THIS_IS_A_BUG", true))
			if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
				dlog.Debugf(ctx, format, args...)
			})); err != nil {
				dlog.Warnf(ctx, "adjusting GOMAXPROCS: %v", err)
			}
			cmd.SetContext(ctx)
		},

		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := resolveJobs(jobsFlag)
			if err != nil {
				return err
			}
			progress := progressFlag
			if !cmd.Flags().Changed("progress") {
				progress = isatty.IsTerminal(os.Stderr.Fd()) && !jsonFlag
			}

			grp := dgroup.NewGroup(cmd.Context(), dgroup.GroupConfig{
				EnableSignalHandling: true,
			})
			grp.Go("main", func(ctx context.Context) error {
				dlog.Debugf(ctx, "using %d workers", jobs)
				stats, err := compsize.Walk(ctx, compsize.WalkConfig{
					Jobs:          jobs,
					OneFileSystem: oneFileSystemFlag,
					Searcher:      searcher,
					Progress:      progress,
				}, args...)
				if err != nil {
					return err
				}
				if jsonFlag {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				return writeTable(cmd.OutOrStdout(), stats, bytesFlag)
			})
			return grp.Wait()
		},
	}
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)
	argparser.PersistentFlags().Var(&logLevelFlag, "verbosity", "set the verbosity")
	stopProfiling := profile.AddProfileFlags(argparser.PersistentFlags(), "profile.")
	argparser.Flags().IntVarP(&jobsFlag, "jobs", "j", 0, "use `N` worker goroutines")
	argparser.Flags().BoolVarP(&bytesFlag, "bytes", "b", false, "show raw byte counts rather than human-readable sizes")
	argparser.Flags().BoolVarP(&oneFileSystemFlag, "one-file-system", "x", false, "don't descend into directories on other filesystems")
	argparser.Flags().BoolVar(&jsonFlag, "json", false, "write the results as JSON")
	argparser.Flags().BoolVar(&progressFlag, "progress", false, "log progress while scanning (default: if stderr is a terminal)")

	argparser.AddCommand(newDumpExtentsCommand(searcher))

	return argparser, stopProfiling
}
