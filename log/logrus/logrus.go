// Package logrus adapts a logrus.Entry to transit.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/transit"
)

var _ transit.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

func (l LogrusLogger) Debug(msg string, f transit.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f transit.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f transit.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f transit.Fields) { l.with(f).Error(msg) }

// with moves an "err" field holding an error to logrus.ErrorKey so hooks and
// formatters treat it as the entry's error.
func (l LogrusLogger) with(f transit.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
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
