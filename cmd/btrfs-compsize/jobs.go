// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
)

const jobsEnvVar = "BTRFS_COMPSIZE_JOBS"

// defaultJobs picks a worker count for a machine with the given
// number of CPUs.  Past a handful of CPUs, the walk is limited by the
// shared extent registry and by the filesystem, not by CPU.
func defaultJobs(cpus int) int {
	switch {
	case cpus < 1:
		return 1
	case cpus <= 6:
		return cpus
	case cpus >= 24:
		return 24
	default:
		return cpus/2 + 1
	}
}

// jobsFromEnv returns the worker count from the environment, or 0 if
// it isn't set.
func jobsFromEnv(lookupEnv func(string) (string, bool)) (int, error) {
	str, ok := lookupEnv(jobsEnvVar)
	if !ok || str == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(str)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid $%s: %q: must be a positive integer", jobsEnvVar, str)
	}
	return n, nil
}

// resolveJobs decides on the number of workers.  An explicit flag
// wins over the environment, which wins over defaultJobs.
// runtime.GOMAXPROCS is used as the CPU count, so that a container
// CPU quota is respected once maxprocs has adjusted it.
func resolveJobs(flag int) (int, error) {
	if flag > 0 {
		return flag, nil
	}
	n, err := jobsFromEnv(os.LookupEnv)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return n, nil
	}
	return defaultJobs(runtime.GOMAXPROCS(0)), nil
}
