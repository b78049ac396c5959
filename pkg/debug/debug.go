// Package debug builds the console loggers used by the lexdb tools.
package debug

import (
	"fmt"
	"io"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

const modulePath = "github.com/walteh/lexdb/"

// NewLogger returns a console logger writing to w at level. Every event gets
// a millisecond time and the caller's package, file and line.
func NewLogger(w io.Writer, level zerolog.Level, withColor bool) zerolog.Logger {
	out := zerolog.ConsoleWriter{
		Out:     w,
		NoColor: !withColor,
		FormatTimestamp: func(i any) string {
			s, _ := i.(string)
			return s
		},
	}
	return zerolog.New(out).
		Level(level).
		Hook(TimeHook{}).
		Hook(CallerHook{WithColor: withColor})
}

// skipFrames reads zerolog's unexported skip count so CallerHook reports the
// right frame for events built with CallerSkipFrame.
func skipFrames(e *zerolog.Event) int {
	field := reflect.ValueOf(e).Elem().FieldByName("skipFrame")
	if field.IsValid() {
		return int(field.Int())
	}
	return 0
}

type TimeHook struct {
	Format string
}

func (t TimeHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	format := t.Format
	if format == "" {
		format = "15:04:05.000"
	}
	e.Str(zerolog.TimestampFieldName, time.Now().Format(format))
}

type CallerHook struct {
	WithColor bool
}

func (c CallerHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	pc, file, line, ok := runtime.Caller(skipFrames(e) + 3)
	if !ok {
		return
	}

	pkg, _ := SplitFuncName(runtime.FuncForPC(pc).Name())
	e.Str(zerolog.CallerFieldName, FormatCaller(pkg, file, line, c.WithColor))
}

// SplitFuncName splits a fully qualified function name as reported by
// runtime.FuncForPC into its package and function. Packages of this module
// lose the module prefix.
func SplitFuncName(name string) (pkg, function string) {
	lastSlash := max(strings.LastIndexByte(name, '/'), 0)
	firstDot := strings.IndexByte(name[lastSlash:], '.') + lastSlash
	if firstDot < lastSlash {
		return strings.TrimPrefix(name, modulePath), ""
	}

	return strings.TrimPrefix(name[:firstDot], modulePath), name[firstDot+1:]
}

func FormatCaller(pkg, path string, line int, colorize bool) string {
	file := path[strings.LastIndexByte(path, '/')+1:]
	if !colorize {
		return fmt.Sprintf("%s:%s:%d", pkg, file, line)
	}

	sep := color.New(color.Faint).Sprint(":")
	return pkg + sep +
		color.New(color.Bold).Sprint(file) + sep +
		color.New(color.FgHiRed, color.Bold).Sprintf("%d", line)
}
