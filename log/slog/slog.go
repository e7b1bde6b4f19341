// Package slog adapts a *slog.Logger to aside.Logger.
package slog

import (
	"context"
	stdslog "log/slog"
	"maps"
	"slices"

	"github.com/unkn0wn-root/aside"
)

var _ aside.Logger = Logger{}

type Logger struct{ L *stdslog.Logger }

func (s Logger) Debug(msg string, f aside.Fields) { s.log(stdslog.LevelDebug, msg, f) }
func (s Logger) Info(msg string, f aside.Fields)  { s.log(stdslog.LevelInfo, msg, f) }
func (s Logger) Warn(msg string, f aside.Fields)  { s.log(stdslog.LevelWarn, msg, f) }
func (s Logger) Error(msg string, f aside.Fields) { s.log(stdslog.LevelError, msg, f) }

func (s Logger) log(level stdslog.Level, msg string, f aside.Fields) {
	s.L.LogAttrs(context.Background(), level, msg, attrs(f)...)
}

func attrs(f aside.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	out := make([]stdslog.Attr, 0, len(f))
	for _, k := range slices.Sorted(maps.Keys(f)) {
		out = append(out, stdslog.Any(k, f[k]))
	}
	return out
}
