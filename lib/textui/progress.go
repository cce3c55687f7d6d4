// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package textui

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/datawire/dlib/dlog"
)

// Stats is a snapshot of the state of a long-running operation.
type Stats interface {
	comparable
	fmt.Stringer
}

// Progress periodically logs the most recent value passed to Set,
// skipping lines that would repeat the previous one.
type Progress[T Stats] struct {
	ctx      context.Context //nolint:containedctx // used only for logging
	lvl      dlog.LogLevel
	interval time.Duration

	start  sync.Once
	cancel context.CancelFunc
	done   chan struct{}

	cur     atomic.Pointer[T]
	oldLine string
}

func NewProgress[T Stats](ctx context.Context, lvl dlog.LogLevel, interval time.Duration) *Progress[T] {
	ctx, cancel := context.WithCancel(ctx)
	return &Progress[T]{
		ctx:      ctx,
		lvl:      lvl,
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Set records the current state; the first call starts the logging
// goroutine.  It is safe to call from multiple goroutines.
func (p *Progress[T]) Set(val T) {
	p.cur.Store(&val)
	p.start.Do(func() { go p.run() })
}

// Done logs the final state (if it changed) and stops logging.  It is
// safe to call Done without ever having called Set.
func (p *Progress[T]) Done() {
	p.start.Do(func() { close(p.done) })
	p.cancel()
	<-p.done
}

func (p *Progress[T]) flush() {
	cur := p.cur.Load()
	if cur == nil {
		return
	}
	line := (*cur).String()
	if line == p.oldLine {
		return
	}
	p.oldLine = line
	dlog.Log(p.ctx, p.lvl, line)
}

func (p *Progress[T]) run() {
	defer close(p.done)
	p.flush()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			p.flush()
			return
		case <-ticker.C:
			p.flush()
		}
	}
}
