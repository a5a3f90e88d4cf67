package log

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mozilla-ai/lumigator/pkg/requestid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StructuredLogger writes operation scoped entries. Every entry of an operation carries
// the operation name, the request id found in the context and the fields given at build time.
type StructuredLogger struct {
	logger *zap.Logger
	level  zapcore.Level
	ctx    context.Context
}

// NewDebugLogger returns a logger whose step and success entries are written at debug level.
func NewDebugLogger(name string) *StructuredLogger {
	return &StructuredLogger{logger: zap.L().Named(name), level: zapcore.DebugLevel}
}

// NewInfoLogger returns a logger whose step and success entries are written at info level.
func NewInfoLogger(name string) *StructuredLogger {
	return &StructuredLogger{logger: zap.L().Named(name), level: zapcore.InfoLevel}
}

func (l *StructuredLogger) WithContext(ctx context.Context) *StructuredLogger {
	return &StructuredLogger{logger: l.logger, level: l.level, ctx: ctx}
}

func (l *StructuredLogger) Operation(name string) *OperationBuilder {
	fields := []zap.Field{zap.String("operation", name)}
	if l.ctx != nil {
		if id := requestid.FromContext(l.ctx); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
	}
	return &OperationBuilder{logger: l.logger, level: l.level, operation: name, fields: fields}
}

type OperationBuilder struct {
	logger    *zap.Logger
	level     zapcore.Level
	operation string
	fields    []zap.Field
}

func (b *OperationBuilder) WithString(key, value string) *OperationBuilder {
	b.fields = append(b.fields, zap.String(key, value))
	return b
}

func (b *OperationBuilder) WithInt(key string, value int) *OperationBuilder {
	b.fields = append(b.fields, zap.Int(key, value))
	return b
}

func (b *OperationBuilder) WithBool(key string, value bool) *OperationBuilder {
	b.fields = append(b.fields, zap.Bool(key, value))
	return b
}

func (b *OperationBuilder) WithUUID(key string, value uuid.UUID) *OperationBuilder {
	b.fields = append(b.fields, zap.String(key, value.String()))
	return b
}

func (b *OperationBuilder) WithParam(key string, value any) *OperationBuilder {
	b.fields = append(b.fields, zap.Any(key, value))
	return b
}

func (b *OperationBuilder) Build() *OperationTracer {
	t := &OperationTracer{
		logger:    b.logger,
		level:     b.level,
		operation: b.operation,
		fields:    b.fields,
		start:     time.Now(),
	}
	t.entry(t.level, "operation started").Log()
	return t
}

type OperationTracer struct {
	logger    *zap.Logger
	level     zapcore.Level
	operation string
	fields    []zap.Field
	start     time.Time
}

func (t *OperationTracer) Step(name string) *Entry {
	return t.entry(t.level, fmt.Sprintf("step: %s", name))
}

func (t *OperationTracer) Success() *Entry {
	e := t.entry(t.level, "operation succeeded")
	e.fields = append(e.fields, zap.Duration("duration", time.Since(t.start)))
	return e
}

func (t *OperationTracer) Error(err error) *Entry {
	e := t.entry(zapcore.ErrorLevel, "operation failed")
	e.fields = append(e.fields, zap.Error(err), zap.Duration("duration", time.Since(t.start)))
	return e
}

// Warn is used for failures the operation recovers from.
func (t *OperationTracer) Warn(msg string) *Entry {
	return t.entry(zapcore.WarnLevel, msg)
}

func (t *OperationTracer) entry(level zapcore.Level, msg string) *Entry {
	fields := make([]zap.Field, len(t.fields), len(t.fields)+4)
	copy(fields, t.fields)
	return &Entry{logger: t.logger, level: level, msg: msg, fields: fields}
}

type Entry struct {
	logger *zap.Logger
	level  zapcore.Level
	msg    string
	fields []zap.Field
}

func (e *Entry) WithString(key, value string) *Entry {
	e.fields = append(e.fields, zap.String(key, value))
	return e
}

func (e *Entry) WithInt(key string, value int) *Entry {
	e.fields = append(e.fields, zap.Int(key, value))
	return e
}

func (e *Entry) WithBool(key string, value bool) *Entry {
	e.fields = append(e.fields, zap.Bool(key, value))
	return e
}

func (e *Entry) WithUUID(key string, value uuid.UUID) *Entry {
	e.fields = append(e.fields, zap.String(key, value.String()))
	return e
}

func (e *Entry) WithUUIDPtr(key string, value *uuid.UUID) *Entry {
	if value == nil {
		e.fields = append(e.fields, zap.Skip())
		return e
	}
	return e.WithUUID(key, *value)
}

func (e *Entry) WithParam(key string, value any) *Entry {
	e.fields = append(e.fields, zap.Any(key, value))
	return e
}

func (e *Entry) Log() {
	if ce := e.logger.Check(e.level, e.msg); ce != nil {
		ce.Write(e.fields...)
	}
}
