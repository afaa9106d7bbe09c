// Package nlog provides a small buffered, timestamped, rotating logger
// shared by every package in this module.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aisnotify/notifyd/cmn/mono"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

const rotateSize int64 = 4 * 1024 * 1024

var sevChar = [...]byte{'I', 'W', 'E'}

type stream struct {
	mu      sync.Mutex
	w       *bufio.Writer
	file    *os.File
	written int64
	last    int64
	sev     severity
}

var (
	toStderr     bool
	alsoToStderr bool
	logDir       string
	role         string
	title        string

	streams [3]*stream
	once    sync.Once
	host, _ = os.Hostname()
	pid     = os.Getpid()
)

func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", false, "log to standard error instead of files")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as files")
}

func SetLogDirRole(dir, r string) { logDir, role = dir, r }
func SetTitle(s string)           { title = s }

func InfoDepth(depth int, args ...any)    { log(sevInfo, depth, "", args...) }
func Infoln(args ...any)                  { log(sevInfo, 0, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, 0, format, args...) }
func Warningln(args ...any)               { log(sevWarn, 0, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, 0, format, args...) }
func ErrorDepth(depth int, args ...any)   { log(sevErr, depth, "", args...) }
func Errorln(args ...any)                 { log(sevErr, 0, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, 0, format, args...) }

func InfoLogName() string { return sname() + ".INFO" }
func ErrLogName() string  { return sname() + ".ERROR" }

func sname() string {
	if role == "" {
		return "notifyd"
	}
	return "notifyd." + role
}

func initStreams() {
	streams[sevInfo] = &stream{sev: sevInfo}
	streams[sevWarn] = streams[sevInfo] // warnings fold into the info stream; errors get a stream of their own
	streams[sevErr] = &stream{sev: sevErr}
	for _, s := range []*stream{streams[sevInfo], streams[sevErr]} {
		if toStderr {
			continue
		}
		if err := s.open(); err != nil {
			toStderr = true
			fmt.Fprintf(os.Stderr, "nlog: failed to open log file, falling back to stderr: %v\n", err)
		}
	}
}

func (s *stream) open() error {
	if logDir == "" {
		return nil
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}
	name, _ := logfname(sevText(s.sev), time.Now())
	f, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	s.file = f
	s.w = bufio.NewWriterSize(f, 32*1024)
	return nil
}

func sevText(s severity) string {
	if s == sevErr {
		return "ERROR"
	}
	return "INFO"
}

func logfname(tag string, t time.Time) (name, link string) {
	s := sname()
	name = fmt.Sprintf("%s.%s.%s.%02d%02d-%02d%02d%02d.%d",
		s, host, tag, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), pid)
	return name, s + "." + tag
}

func log(sev severity, depth int, format string, args ...any) {
	once.Do(initStreams)

	line := formatLine(sev, depth+1, format, args...)

	if toStderr || alsoToStderr || sev >= sevWarn {
		os.Stderr.WriteString(line)
	}
	if toStderr {
		return
	}

	s := streams[sev]
	s.mu.Lock()
	if s.w != nil {
		n, _ := s.w.WriteString(line)
		s.written += int64(n)
		s.last = mono.NanoTime()
		if s.written >= rotateSize {
			s.rotate()
		}
	}
	s.mu.Unlock()
}

// caller must hold s.mu
func (s *stream) rotate() {
	if s.w != nil {
		s.w.Flush()
	}
	if s.file != nil {
		s.file.Close()
	}
	s.written = 0
	s.open()
}

func formatLine(sev severity, depth int, format string, args ...any) string {
	var b strings.Builder
	b.WriteByte(sevChar[sev])
	b.WriteByte(' ')
	b.WriteString(time.Now().Format("15:04:05.000000"))
	b.WriteByte(' ')
	if _, fn, ln, ok := runtime.Caller(depth + 2); ok {
		if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
			fn = fn[idx+1:]
		}
		b.WriteString(fn)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(ln))
		b.WriteByte(' ')
	}
	if format == "" {
		fmt.Fprintln(&b, args...)
	} else {
		fmt.Fprintf(&b, format, args...)
		if !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Flush writes out buffered lines; when exit is true it also closes and
// syncs the underlying files (called once, on clean shutdown).
func Flush(exit ...bool) {
	ex := len(exit) > 0 && exit[0]
	for _, s := range []*stream{streams[sevInfo], streams[sevErr]} {
		if s == nil {
			continue
		}
		s.mu.Lock()
		if s.w != nil {
			s.w.Flush()
		}
		if ex && s.file != nil {
			s.file.Sync()
			s.file.Close()
		}
		s.mu.Unlock()
	}
}

func Since() time.Duration {
	now := mono.NanoTime()
	var last int64
	for _, s := range []*stream{streams[sevInfo], streams[sevErr]} {
		if s == nil {
			continue
		}
		s.mu.Lock()
		if s.last > last {
			last = s.last
		}
		s.mu.Unlock()
	}
	return time.Duration(now - last)
}
