// Package logrus adapts a *logrus.Entry to aside.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/aside"
)

var _ aside.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

func (l Logger) Debug(msg string, f aside.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f aside.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f aside.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f aside.Fields) { l.with(f).Error(msg) }

// with moves an error under "err" to logrus.ErrorKey.
func (l Logger) with(f aside.Fields) *logrus.Entry {
	fields := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			fields[logrus.ErrorKey] = err
			continue
		}
		fields[k] = v
	}
	return l.E.WithFields(fields)
}
