// Copyright (C) 2019-2022  Ambassador Labs
// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: Apache-2.0
//
// Contains code based on:
// https://github.com/datawire/dlib/blob/b09ab2e017e16d261f05fff5b3b860d645e774d4/dlog/logger_logrus.go
// https://github.com/datawire/dlib/blob/b09ab2e017e16d261f05fff5b3b860d645e774d4/dlog/logger_testing.go
// https://github.com/telepresenceio/telepresence/blob/ece94a40b00a90722af36b12e40f91cbecc0550c/pkg/log/formatter.go

package textui

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"git.lukeshu.com/go/typedsync"
	"github.com/datawire/dlib/dlog"
	"github.com/spf13/pflag"
)

type LogLevelFlag struct {
	Level dlog.LogLevel
}

var _ pflag.Value = (*LogLevelFlag)(nil)

// Type implements pflag.Value.
func (lvl *LogLevelFlag) Type() string { return "loglevel" }

// Set implements pflag.Value.
func (lvl *LogLevelFlag) Set(str string) error {
	switch strings.ToLower(str) {
	case "error":
		lvl.Level = dlog.LogLevelError
	case "warn", "warning":
		lvl.Level = dlog.LogLevelWarn
	case "info":
		lvl.Level = dlog.LogLevelInfo
	case "debug":
		lvl.Level = dlog.LogLevelDebug
	case "trace":
		lvl.Level = dlog.LogLevelTrace
	default:
		return fmt.Errorf("invalid log level: %q", str)
	}
	return nil
}

// String implements pflag.Value.
func (lvl *LogLevelFlag) String() string {
	switch lvl.Level {
	case dlog.LogLevelError:
		return "error"
	case dlog.LogLevelWarn:
		return "warn"
	case dlog.LogLevelInfo:
		return "info"
	case dlog.LogLevelDebug:
		return "debug"
	case dlog.LogLevelTrace:
		return "trace"
	default:
		panic(fmt.Errorf("invalid log level: %#v", lvl.Level))
	}
}

type logger struct {
	parent *logger
	out    io.Writer
	lvl    dlog.LogLevel

	// only valid if parent is non-nil
	fieldKey string
	fieldVal any
}

var _ dlog.OptimizedLogger = (*logger)(nil)

func NewLogger(out io.Writer, lvl dlog.LogLevel) dlog.Logger {
	return &logger{
		out: out,
		lvl: lvl,
	}
}

// Helper implements dlog.Logger.
func (l *logger) Helper() {}

// WithField implements dlog.Logger.
func (l *logger) WithField(key string, value any) dlog.Logger {
	return &logger{
		parent: l,
		out:    l.out,
		lvl:    l.lvl,

		fieldKey: key,
		fieldVal: value,
	}
}

type logWriter struct {
	log *logger
	lvl dlog.LogLevel
}

// Write implements io.Writer.
func (lw logWriter) Write(data []byte) (int, error) {
	lw.log.log(lw.lvl, func(w io.Writer) {
		_, _ = w.Write(data)
	})
	return len(data), nil
}

// StdLogger implements dlog.Logger.
func (l *logger) StdLogger(lvl dlog.LogLevel) *log.Logger {
	return log.New(logWriter{log: l, lvl: lvl}, "", 0)
}

// Log implements dlog.Logger.
func (l *logger) Log(lvl dlog.LogLevel, msg string) {
	panic("should not happen: optimized log methods should be used instead")
}

// UnformattedLog implements dlog.OptimizedLogger.
func (l *logger) UnformattedLog(lvl dlog.LogLevel, args ...any) {
	l.log(lvl, func(w io.Writer) {
		_, _ = printer.Fprint(w, args...)
	})
}

// UnformattedLogln implements dlog.OptimizedLogger.
func (l *logger) UnformattedLogln(lvl dlog.LogLevel, args ...any) {
	l.log(lvl, func(w io.Writer) {
		_, _ = printer.Fprintln(w, args...)
	})
}

// UnformattedLogf implements dlog.OptimizedLogger.
func (l *logger) UnformattedLogf(lvl dlog.LogLevel, format string, args ...any) {
	l.log(lvl, func(w io.Writer) {
		_, _ = printer.Fprintf(w, format, args...)
	})
}

var (
	logBufPool = typedsync.Pool[*bytes.Buffer]{
		New: func() *bytes.Buffer {
			return new(bytes.Buffer)
		},
	}
	logMu      sync.Mutex
	thisModDir string
)

func init() {
	//nolint:dogsled // I can't change the signature of the stdlib.
	_, file, _, _ := runtime.Caller(0)
	thisModDir = filepath.Dir(filepath.Dir(filepath.Dir(file)))
}

var levelTags = map[dlog.LogLevel]string{
	dlog.LogLevelError: " ERR",
	dlog.LogLevelWarn:  " WRN",
	dlog.LogLevelInfo:  " INF",
	dlog.LogLevelDebug: " DBG",
	dlog.LogLevelTrace: " TRC",
}

type logField struct {
	key string
	val any
}

// fields returns the fields of l (innermost value wins for repeated
// keys), sorted for display.
func (l *logger) fields() []logField {
	seen := make(map[string]struct{})
	var ret []logField
	for f := l; f.parent != nil; f = f.parent {
		if _, dup := seen[f.fieldKey]; dup {
			continue
		}
		seen[f.fieldKey] = struct{}{}
		ret = append(ret, logField{key: f.fieldKey, val: f.fieldVal})
	}
	sort.Slice(ret, func(i, j int) bool {
		iOrd, jOrd := fieldOrd(ret[i].key), fieldOrd(ret[j].key)
		if iOrd != jOrd {
			return iOrd < jOrd
		}
		return ret[i].key < ret[j].key
	})
	return ret
}

// caller returns the "file:line" of the first frame outside of this
// package that is inside of this module.
func caller() (string, bool) {
	const (
		thisModule             = "git.lukeshu.com/btrfs-compsize"
		thisPackage            = "git.lukeshu.com/btrfs-compsize/lib/textui"
		maximumCallerDepth int = 25
		minimumCallerDepth int = 4 // runtime.Callers + caller + .log + .Log
	)
	var pcs [maximumCallerDepth]uintptr
	depth := runtime.Callers(minimumCallerDepth, pcs[:])
	frames := runtime.CallersFrames(pcs[:depth])
	for f, again := frames.Next(); again; f, again = frames.Next() {
		if !strings.HasPrefix(f.Function, thisModule+"/") || strings.HasPrefix(f.Function, thisPackage+".") {
			continue
		}
		file := f.File[strings.LastIndex(f.File, thisModDir+"/")+len(thisModDir+"/"):]
		return fmt.Sprintf("%s:%d", file, f.Line), true
	}
	return "", false
}

// log writes a line of the form
//
//	TIME LVL [early-fields] : MSG : [late-fields] (from FILE:LINE)
func (l *logger) log(lvl dlog.LogLevel, writeMsg func(io.Writer)) {
	if lvl > l.lvl {
		return
	}
	logBuf, _ := logBufPool.Get()
	defer logBufPool.Put(logBuf)
	defer logBuf.Reset()

	logBuf.WriteString(time.Now().Format("15:04:05.0000"))
	logBuf.WriteString(levelTags[lvl])

	fields := l.fields()
	split := sort.Search(len(fields), func(i int) bool {
		return fieldOrd(fields[i].key) >= 0
	})
	for _, f := range fields[:split] {
		writeField(logBuf, f.key, f.val)
	}

	logBuf.WriteString(" : ")
	writeMsg(logBuf)

	logBuf.WriteString(" :")
	for _, f := range fields[split:] {
		writeField(logBuf, f.key, f.val)
	}
	if where, ok := caller(); ok {
		fmt.Fprintf(logBuf, " (from %s)", where)
	}
	logBuf.WriteByte('\n')

	logMu.Lock()
	_, _ = l.out.Write(logBuf.Bytes())
	logMu.Unlock()
}

// fieldOrd returns the sort-position for a given log-field-key.  Keys
// with negative values go to the left of the message, the rest to the
// right.
func fieldOrd(key string) int {
	switch key {
	case "THREAD": // dgroup
		return -99
	case "compsize.path":
		return -2
	case "compsize.inode":
		return -1
	default:
		return 1
	}
}

func needsQuote(str string) bool {
	if strings.HasPrefix(str, `"`) {
		return true
	}
	for _, r := range str {
		if !unicode.IsPrint(r) || r == ' ' {
			return true
		}
	}
	return false
}

func writeField(w io.Writer, key string, val any) {
	valStr := printer.Sprint(val)
	if needsQuote(valStr) {
		valStr = strconv.Quote(valStr)
	}
	name := key
	switch {
	case name == "THREAD":
		// dgroup goroutine names are "/main/worker-N"; show
		// "worker-N" and hide "/main" entirely.
		name = "thread"
		if valStr == "" || valStr == "/main" {
			return
		}
		if trimmed := strings.TrimPrefix(valStr, "/main/"); trimmed != valStr {
			valStr = trimmed
		} else {
			valStr = strings.TrimPrefix(valStr, "/")
		}
	case strings.HasPrefix(name, "compsize."):
		name = strings.TrimPrefix(name, "compsize.")
	}
	fmt.Fprintf(w, " %s=%s", name, valStr)
}
