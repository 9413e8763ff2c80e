// logger/customcore.go
package logger

import (
	"go.uber.org/zap/zapcore"
)

// Field keys shared by every component that logs a request.
const (
	FieldRequestID = "request_id"
	FieldService   = "service"
)

type customCore struct {
	zapcore.Core
	trailing []zapcore.Field // request_id and service fields added through With
}

// With adds structured context to the Core. The request_id and service fields are held back
// here because the wrapped core would encode them ahead of every call-site field.
func (c *customCore) With(fields []zapcore.Field) zapcore.Core {
	var context []zapcore.Field
	trailing := append([]zapcore.Field(nil), c.trailing...)
	for _, field := range fields {
		if isTrailingField(field) {
			trailing = append(trailing, field)
			continue
		}
		context = append(context, field)
	}

	inner := c.Core
	if len(context) > 0 {
		inner = c.Core.With(context)
	}
	return &customCore{Core: inner, trailing: trailing}
}

// Write moves the request_id and service fields behind every other field so that the
// request details lead each entry.
func (c *customCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	all := make([]zapcore.Field, 0, len(c.trailing)+len(fields))
	all = append(all, c.trailing...)
	all = append(all, fields...)
	return c.Core.Write(entry, reorderFields(all))
}

// Check determines whether the supplied Entry should be logged. The entry is added with
// this core, not the wrapped one, so that Write above runs.
func (c *customCore) Check(entry zapcore.Entry, checkedEntry *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checkedEntry.AddCore(entry, c)
	}
	return checkedEntry
}

// Sync flushes buffered logs (if any).
func (c *customCore) Sync() error {
	return c.Core.Sync()
}

func reorderFields(fields []zapcore.Field) []zapcore.Field {
	reordered := make([]zapcore.Field, 0, len(fields))
	var trailing []zapcore.Field
	for _, field := range fields {
		if isTrailingField(field) {
			trailing = append(trailing, field)
			continue
		}
		reordered = append(reordered, field)
	}
	return append(reordered, trailing...)
}

func isTrailingField(field zapcore.Field) bool {
	return field.Key == FieldRequestID || field.Key == FieldService
}
