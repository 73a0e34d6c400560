// SPDX-License-Identifier: Apache-2.0

// Package logging provides the structured logger used across the load
// pipeline: schema migrations, flushes, version activations, and
// dropped/invalid records.
package logging

import "github.com/pterm/pterm"

// Logger is responsible for logging all pipeline activity.
type Logger interface {
	LogSchemaReceived(stream string, tables int)
	LogSchemaMigration(stream, table string, operations []string)
	LogFlushStart(stream string, rows int)
	LogFlushComplete(stream string, rows int)
	LogVersionActivate(stream string, version int64)
	LogVersionStale(stream string, got, current int64)
	LogRecordDropped(stream string, err error)
	LogRecordInvalid(stream string, err error)

	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type pipelineLogger struct {
	logger pterm.Logger
}

type noopLogger struct{}

// New returns a Logger backed by pterm's default structured logger.
func New() Logger {
	return &pipelineLogger{logger: pterm.DefaultLogger}
}

// NewNoop returns a Logger that discards everything, for tests.
func NewNoop() Logger {
	return &noopLogger{}
}

func (l *pipelineLogger) LogSchemaReceived(stream string, tables int) {
	l.logger.Info("schema received", l.logger.Args("stream", stream, "tables", tables))
}

func (l *pipelineLogger) LogSchemaMigration(stream, table string, operations []string) {
	l.logger.Info("migrating table schema", l.logger.Args(
		"stream", stream,
		"table", table,
		"operations", operations,
	))
}

func (l *pipelineLogger) LogFlushStart(stream string, rows int) {
	l.logger.Info("flush starting", l.logger.Args("stream", stream, "rows", rows))
}

func (l *pipelineLogger) LogFlushComplete(stream string, rows int) {
	l.logger.Info("flush complete", l.logger.Args("stream", stream, "rows", rows))
}

func (l *pipelineLogger) LogVersionActivate(stream string, version int64) {
	l.logger.Info("activated table version", l.logger.Args("stream", stream, "version", version))
}

func (l *pipelineLogger) LogVersionStale(stream string, got, current int64) {
	l.logger.Warn("ignored stale activate-version", l.logger.Args(
		"stream", stream,
		"got", got,
		"current", current,
	))
}

func (l *pipelineLogger) LogRecordDropped(stream string, err error) {
	l.logger.Warn("dropped out-of-order record", l.logger.Args("stream", stream, "error", err))
}

func (l *pipelineLogger) LogRecordInvalid(stream string, err error) {
	l.logger.Warn("record failed schema validation", l.logger.Args("stream", stream, "error", err))
}

func (l *pipelineLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, l.logger.Args(args))
}

func (l *pipelineLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, l.logger.Args(args))
}

func (l *noopLogger) LogSchemaReceived(stream string, tables int)                    {}
func (l *noopLogger) LogSchemaMigration(stream, table string, operations []string)   {}
func (l *noopLogger) LogFlushStart(stream string, rows int)                         {}
func (l *noopLogger) LogFlushComplete(stream string, rows int)                      {}
func (l *noopLogger) LogVersionActivate(stream string, version int64)               {}
func (l *noopLogger) LogVersionStale(stream string, got, current int64)             {}
func (l *noopLogger) LogRecordDropped(stream string, err error)                     {}
func (l *noopLogger) LogRecordInvalid(stream string, err error)                     {}
func (l *noopLogger) Info(msg string, args ...any)                                  {}
func (l *noopLogger) Warn(msg string, args ...any)                                  {}
