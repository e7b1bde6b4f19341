// Package zap adapts a *zap.Logger to aside.Logger.
package zap

import (
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/aside"
)

var _ aside.Logger = Logger{}

type Logger struct{ L *zap.Logger }

func (z Logger) Debug(msg string, f aside.Fields) { z.L.Debug(msg, zf(f)...) }
func (z Logger) Info(msg string, f aside.Fields)  { z.L.Info(msg, zf(f)...) }
func (z Logger) Warn(msg string, f aside.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z Logger) Error(msg string, f aside.Fields) { z.L.Error(msg, zf(f)...) }

// zf emits fields in key order; an error under "err" becomes zap.Error.
func zf(f aside.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for _, k := range slices.Sorted(maps.Keys(f)) {
		if err, ok := f[k].(error); ok && k == "err" {
			out = append(out, zap.Error(err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
