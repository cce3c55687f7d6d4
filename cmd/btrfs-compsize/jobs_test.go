// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultJobs(t *testing.T) {
	t.Parallel()
	testcases := map[int]int{
		0:   1,
		1:   1,
		4:   4,
		6:   6,
		7:   4,
		8:   5,
		16:  9,
		23:  12,
		24:  24,
		128: 24,
	}
	for cpus, exp := range testcases {
		assert.Equal(t, exp, defaultJobs(cpus), "cpus=%d", cpus)
	}
}

func TestJobsFromEnv(t *testing.T) {
	t.Parallel()
	env := func(val string, ok bool) func(string) (string, bool) {
		return func(key string) (string, bool) {
			assert.Equal(t, jobsEnvVar, key)
			return val, ok
		}
	}

	n, err := jobsFromEnv(env("", false))
	assert.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = jobsFromEnv(env("", true))
	assert.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = jobsFromEnv(env("3", true))
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = jobsFromEnv(env("0", true))
	assert.Error(t, err)
	_, err = jobsFromEnv(env("lots", true))
	assert.Error(t, err)
}

func TestResolveJobsFlag(t *testing.T) {
	t.Parallel()
	n, err := resolveJobs(7)
	assert.NoError(t, err)
	assert.Equal(t, 7, n)
}
