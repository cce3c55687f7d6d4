// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package compsize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/datawire/dlib/derror"
	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"git.lukeshu.com/btrfs-compsize/lib/textui"
)

// WalkConfig configures Walk.
type WalkConfig struct {
	// Jobs is the number of worker goroutines; values less than 1
	// mean 1.
	Jobs int
	// OneFileSystem causes directories on a different device than
	// the root that they were reached from to be skipped.
	OneFileSystem bool
	// Searcher defaults to IoctlSearcher.
	Searcher SearcherFunc
	// Progress enables periodically logging progress at the Info
	// level.
	Progress bool
}

var progressInterval = textui.Tunable(1 * time.Second)

type unitKind uint8

const (
	unitFile unitKind = iota
	unitDir
)

type unit struct {
	path string
	kind unitKind
	dev  uint64 // of the root this unit was reached from
}

// workQueue is an unbounded LIFO queue that tracks how many units
// have been pushed but not yet finished.  Pushing never blocks.  The
// queue closes itself once every unit has finished.
type workQueue struct {
	mu      sync.Mutex
	cond    sync.Cond
	units   []unit
	pending int
	closed  bool
}

func newWorkQueue() *workQueue {
	q := new(workQueue)
	q.cond.L = &q.mu
	return q
}

func (q *workQueue) push(u unit) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.units = append(q.units, u)
	q.pending++
	q.cond.Signal()
}

// pop waits for a unit.  It returns false once the queue is closed;
// the caller must call done once it has finished with the unit.
func (q *workQueue) pop() (unit, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.units) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return unit{}, false
	}
	u := q.units[len(q.units)-1]
	q.units = q.units[:len(q.units)-1]
	return u, true
}

func (q *workQueue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending--
	if q.pending == 0 {
		q.closed = true
		q.cond.Broadcast()
	}
}

func (q *workQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

func (q *workQueue) numPending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

type walkProgress struct {
	Files   uint64
	Dirs    uint64
	Errors  uint64
	Pending int
}

func (p walkProgress) String() string {
	return fmt.Sprintf("scanned %s files in %s directories (%s errors), %s queued",
		humanize.Comma(int64(p.Files)),
		humanize.Comma(int64(p.Dirs)),
		humanize.Comma(int64(p.Errors)),
		humanize.Comma(int64(p.Pending)))
}

type walker struct {
	cfg   WalkConfig
	queue *workQueue

	progress      *textui.Progress[walkProgress]
	progressFiles atomic.Uint64
	progressDirs  atomic.Uint64
	progressErrs  atomic.Uint64
}

func (w *walker) report() {
	if w.progress == nil {
		return
	}
	w.progress.Set(walkProgress{
		Files:   w.progressFiles.Load(),
		Dirs:    w.progressDirs.Load(),
		Errors:  w.progressErrs.Load(),
		Pending: w.queue.numPending(),
	})
}

// rootUnit stats a root path.  Roots are followed if they are
// symlinks.  ok is false for roots that are neither regular files nor
// directories.
func rootUnit(path string) (u unit, ok bool, err error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return unit{}, false, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	u = unit{path: path, dev: uint64(st.Dev)} //nolint:unconvert // st.Dev is not uint64 on every arch
	switch st.Mode & unix.S_IFMT {
	case unix.S_IFREG:
		u.kind = unitFile
	case unix.S_IFDIR:
		u.kind = unitDir
	default:
		return unit{}, false, nil
	}
	return u, true, nil
}

// Walk scans every regular file in or under the given roots, without
// following symlinks, and returns the combined Statistic.  Each file
// is visited once per path that reaches it; hardlinks are counted
// once per link, but their extents are only counted once.
//
// Failures to scan individual files or directories are logged and
// counted in Statistic.NErrors, but do not stop the walk.  An error
// is returned if any root can't be stat'ed (before anything is
// scanned), or if ctx is canceled (along with the partial result).
func Walk(ctx context.Context, cfg WalkConfig, roots ...string) (Statistic, error) {
	if cfg.Jobs < 1 {
		cfg.Jobs = 1
	}

	var units []unit
	var errs derror.MultiError
	for _, root := range roots {
		u, ok, err := rootUnit(root)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			dlog.Infof(ctx, "%q: not a regular file or directory; skipping", root)
			continue
		}
		units = append(units, u)
	}
	switch len(errs) {
	case 0:
	case 1:
		return Statistic{}, errs[0]
	default:
		return Statistic{}, errs
	}

	if len(units) == 0 {
		return Statistic{}, nil
	}

	w := &walker{
		cfg:   cfg,
		queue: newWorkQueue(),
	}
	for _, u := range units {
		w.queue.push(u)
	}
	stop := context.AfterFunc(ctx, w.queue.close)
	defer stop()

	if cfg.Progress {
		w.progress = textui.NewProgress[walkProgress](ctx, dlog.LogLevelInfo, progressInterval)
		w.report()
	}

	registry := NewExtentRegistry()
	workers := make([]*Worker, cfg.Jobs)
	grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{})
	for i := range workers {
		worker := NewWorker(registry, cfg.Searcher)
		workers[i] = worker
		grp.Go(fmt.Sprintf("worker-%d", i), func(ctx context.Context) error {
			for {
				u, ok := w.queue.pop()
				if !ok {
					return nil
				}
				w.visit(ctx, worker, u)
				w.queue.done()
				w.report()
			}
		})
	}
	werr := grp.Wait()
	if w.progress != nil {
		w.progress.Done()
	}

	var stats Statistic
	for _, worker := range workers {
		stats.Merge(worker.Stats)
	}
	dlog.Debugf(ctx, "%v distinct extents", textui.Humanized(registry.Len()))
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, werr
}

// visit processes a single unit of work.  Failures, including panics,
// are confined to the unit.
func (w *walker) visit(ctx context.Context, worker *Worker, u unit) {
	ctx = dlog.WithField(ctx, "compsize.path", u.path)
	var err error
	defer func() {
		if _err := derror.PanicToError(recover()); _err != nil {
			err = _err
		}
		if err != nil {
			dlog.Errorf(ctx, "%v", err)
			worker.Stats.NErrors++
			w.progressErrs.Add(1)
		}
	}()
	switch u.kind {
	case unitFile:
		err = worker.ScanFile(ctx, u.path)
		w.progressFiles.Add(1)
	case unitDir:
		err = w.readDir(ctx, u)
		w.progressDirs.Add(1)
	}
}

func (w *walker) readDir(ctx context.Context, dir unit) error {
	if w.cfg.OneFileSystem {
		var st unix.Stat_t
		if err := unix.Lstat(dir.path, &st); err != nil {
			return &os.PathError{Op: "lstat", Path: dir.path, Err: err}
		}
		if uint64(st.Dev) != dir.dev { //nolint:unconvert // st.Dev is not uint64 on every arch
			dlog.Debugf(ctx, "skipping mount point")
			return nil
		}
	}
	entries, err := os.ReadDir(dir.path)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		child := unit{
			path: filepath.Join(dir.path, entry.Name()),
			dev:  dir.dev,
		}
		switch typ := entry.Type(); {
		case typ.IsRegular():
			child.kind = unitFile
		case typ.IsDir():
			child.kind = unitDir
		default:
			dlog.Tracef(ctx, "skipping %q: %v", entry.Name(), typ)
			continue
		}
		w.queue.push(child)
	}
	return nil
}
