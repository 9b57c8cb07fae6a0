// Package corelog is the structured logging façade used throughout hub,
// device, fsm, and fabric, generalizing the teacher's Debug/Info/Warn/Error
// + Bind(...) Logger protocol (coreengine/agents/agent.go) over
// github.com/go-logr/logr, with a github.com/go-logr/zapr-backed default
// implementation matching the jordigilh-kubernaut pkg/log convention.
package corelog

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// Logger is the structured logging surface consumed by every package in
// this module. It is always passed explicitly (never reached for as a
// package-level global), per spec.md §9's no-ambient-singletons rule.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(err error, msg string, kv ...any)
	// Bind returns a child logger with kv permanently attached, mirroring
	// the teacher's sub-logger pattern for per-device/per-action context.
	Bind(kv ...any) Logger
}

// logrLogger adapts a logr.Logger to Logger. Debug/Info map to V(1)/V(0).
type logrLogger struct {
	l logr.Logger
}

// NewZapLogger builds the default production Logger: a zap.Logger wrapped
// via zapr into the logr façade.
func NewZapLogger(zl *zap.Logger) Logger {
	return &logrLogger{l: zapr.NewLogger(zl)}
}

// NewNoop returns a Logger that discards everything, for tests.
func NewNoop() Logger {
	return &logrLogger{l: logr.Discard()}
}

func (g *logrLogger) Debug(msg string, kv ...any) { g.l.V(1).Info(msg, kv...) }
func (g *logrLogger) Info(msg string, kv ...any)  { g.l.V(0).Info(msg, kv...) }
func (g *logrLogger) Warn(msg string, kv ...any)  { g.l.V(0).Info("WARN: "+msg, kv...) }
func (g *logrLogger) Error(err error, msg string, kv ...any) {
	g.l.Error(err, msg, kv...)
}
func (g *logrLogger) Bind(kv ...any) Logger {
	return &logrLogger{l: g.l.WithValues(kv...)}
}

// Func adapts the fsm/state-package "func(string, ...any)" shape to a
// Logger.Debug call, used where those packages take a bare log function
// rather than the full Logger interface.
func Func(l Logger) func(string, ...any) {
	if l == nil {
		return func(string, ...any) {}
	}
	return l.Debug
}
