// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package profile implements command-line flags for getting
// profiling information from the Go runtime.
package profile

import (
	"io"
	"os"
	"runtime/pprof"
	"runtime/trace"

	"github.com/datawire/dlib/derror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type StopFunc = func() error

type startFunc = func(io.Writer) (StopFunc, error)

// CPU arranges to write a CPU profile to the given Writer, and
// returns a function to be called on shutdown.
func CPU(w io.Writer) (StopFunc, error) {
	if err := pprof.StartCPUProfile(w); err != nil {
		return nil, err
	}
	return func() error {
		pprof.StopCPUProfile()
		return nil
	}, nil
}

// Trace arranges to write a trace (https://pkg.go.dev/runtime/trace)
// to the given Writer, and returns a function to be called on
// shutdown.
func Trace(w io.Writer) (StopFunc, error) {
	if err := trace.Start(w); err != nil {
		return nil, err
	}
	return func() error {
		trace.Stop()
		return nil
	}, nil
}

// Named arranges to write the runtime/pprof profile with the given
// name to the given Writer on shutdown.
func Named(name string) startFunc {
	return func(w io.Writer) (StopFunc, error) {
		return func() error {
			if prof := pprof.Lookup(name); prof != nil {
				return prof.WriteTo(w, 0)
			}
			return nil
		}, nil
	}
}

type flagSet struct {
	shutdown []StopFunc
}

func (fs *flagSet) Stop() error {
	var errs derror.MultiError
	for _, fn := range fs.shutdown {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	fs.shutdown = nil
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type flagValue struct {
	parent *flagSet
	start  startFunc
	curVal string
}

var _ pflag.Value = (*flagValue)(nil)

// String implements pflag.Value.
func (fv *flagValue) String() string { return fv.curVal }

// Set implements pflag.Value.
func (fv *flagValue) Set(filename string) error {
	if filename == "" {
		return nil
	}
	w, err := os.Create(filename)
	if err != nil {
		return err
	}
	shutdown, err := fv.start(w)
	if err != nil {
		_ = w.Close()
		return err
	}
	fv.curVal = filename
	fv.parent.shutdown = append(fv.parent.shutdown, func() error {
		err1 := shutdown()
		err2 := w.Close()
		if err1 != nil {
			return err1
		}
		return err2
	})
	return nil
}

// Type implements pflag.Value.
func (*flagValue) Type() string { return "filename" }

// The "mutex" and "block" profiles are the interesting ones for
// seeing contention on the shared extent registry; they are only
// populated if the sampling rates have been set (see
// runtime.SetMutexProfileFraction and runtime.SetBlockProfileRate).
var profiles = []struct {
	name  string
	start startFunc
	help  string
}{
	{"cpu", CPU, "Write a CPU profile to the file `cpu.pprof`"},
	{"trace", Trace, "Write a trace (https://pkg.go.dev/runtime/trace) to the file `trace.out`"},
	{"goroutine", Named("goroutine"), "Write a goroutine profile to the file `goroutine.pprof`"},
	{"heap", Named("heap"), "Write a heap profile to the file `heap.pprof`"},
	{"allocs", Named("allocs"), "Write an allocs profile to the file `allocs.pprof`"},
	{"block", Named("block"), "Write a block profile to the file `block.pprof`"},
	{"mutex", Named("mutex"), "Write a mutex profile to the file `mutex.pprof`"},
}

// AddProfileFlags adds flags to a pflag.FlagSet to write any (or all)
// of the standard profiles to a file, and returns a "stop" function
// to be called at program shutdown.
func AddProfileFlags(flags *pflag.FlagSet, prefix string) StopFunc {
	root := new(flagSet)
	for _, prof := range profiles {
		flags.Var(&flagValue{parent: root, start: prof.start}, prefix+prof.name, prof.help)
		_ = cobra.MarkFlagFilename(flags, prefix+prof.name)
	}
	return root.Stop
}
