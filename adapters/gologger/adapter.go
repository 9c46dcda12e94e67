package gologger

import (
	"context"
	"strings"

	fiberlog "github.com/gofiber/fiber/v2/log"
	glog "github.com/goliatone/go-logger/glog"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// FiberLogger forwards glog calls to fiber's structured logger. Arguments are
// treated as alternating key/value pairs.
type FiberLogger struct {
	name string
	ctx  context.Context
}

func NewFiberLogger(name string) *FiberLogger {
	return &FiberLogger{name: strings.TrimSpace(name)}
}

func (l *FiberLogger) Trace(msg string, args ...any) { l.target().Tracew(msg, l.fields(args)...) }
func (l *FiberLogger) Debug(msg string, args ...any) { l.target().Debugw(msg, l.fields(args)...) }
func (l *FiberLogger) Info(msg string, args ...any)  { l.target().Infow(msg, l.fields(args)...) }
func (l *FiberLogger) Warn(msg string, args ...any)  { l.target().Warnw(msg, l.fields(args)...) }
func (l *FiberLogger) Error(msg string, args ...any) { l.target().Errorw(msg, l.fields(args)...) }
func (l *FiberLogger) Fatal(msg string, args ...any) { l.target().Fatalw(msg, l.fields(args)...) }

func (l *FiberLogger) WithContext(ctx context.Context) glog.Logger {
	if l == nil {
		return NewFiberLogger("")
	}
	return &FiberLogger{name: l.name, ctx: ctx}
}

func (l *FiberLogger) target() fiberlog.CommonLogger {
	if l != nil && l.ctx != nil {
		return fiberlog.WithContext(l.ctx)
	}
	return fiberlog.DefaultLogger()
}

func (l *FiberLogger) fields(args []any) []any {
	if l == nil || l.name == "" {
		return args
	}
	out := make([]any, 0, len(args)+2)
	out = append(out, "logger", l.name)
	return append(out, args...)
}

// FiberProvider hands out named FiberLoggers.
type FiberProvider struct{}

func (FiberProvider) GetLogger(name string) glog.Logger {
	return NewFiberLogger(name)
}

var (
	_ glog.Logger         = (*FiberLogger)(nil)
	_ glog.LoggerProvider = FiberProvider{}
)
