// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pgsing/pgsing/pkg/denorm"
	"github.com/pgsing/pgsing/pkg/load"
	"github.com/pgsing/pgsing/pkg/stream"
)

// Loader is the persistence surface the dispatcher drives; *load.Engine
// satisfies it. Kept as an interface (rather than a concrete *load.Engine
// field) so tests can exercise routing and STATE-echo behavior without a
// real Postgres connection.
type Loader interface {
	FlushUpsert(ctx context.Context, streamName string, tables []denorm.LogicalTable, records []map[string]any) error
	FlushFullTableReplacement(ctx context.Context, streamName string, tables []denorm.LogicalTable, records []map[string]any, version int64) error
	ActivateVersion(ctx context.Context, streamName string, tables []denorm.LogicalTable, version int64) error
}

// streamState is the live state for one stream: its buffered processor,
// the logical table set produced by the most recently seen SCHEMA, and
// (in full-table-replacement mode) the version most recently loaded into
// its loading table but not yet swapped live.
type streamState struct {
	proc   *stream.Processor
	tables []denorm.LogicalTable

	pendingVersion *int64
}

// Dispatcher reads the input message stream and drives one Processor per
// stream, flushing through engine whenever a processor's buffer fills,
// its version advances, or an ACTIVATE_VERSION message arrives.
type Dispatcher struct {
	engine Loader
	cfg    stream.Config
	log    Logger
	out    io.Writer

	streams   map[string]*streamState
	lastState json.RawMessage
}

// New returns a Dispatcher that loads through engine, buffers per the
// given Config, writes STATE echoes to out, and logs notices to log (pass
// NopLogger{} to discard them).
func New(engine Loader, cfg stream.Config, out io.Writer, log Logger) *Dispatcher {
	return &Dispatcher{
		engine:  engine,
		cfg:     cfg,
		log:     log,
		out:     out,
		streams: make(map[string]*streamState),
	}
}

// Run consumes r one JSON message per line until EOF, flushing every
// stream's remaining buffer before returning.
func (d *Dispatcher) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	maxToken := int(d.cfg.MaxBufferSize)
	if maxToken <= 0 {
		maxToken = int(stream.DefaultConfig().MaxBufferSize)
	}
	scanner.Buffer(make([]byte, 0, 64*1024), maxToken)

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		if err := d.dispatchLine(ctx, line, text); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("dispatch: reading input: %w", err)
	}

	return d.flushAll(ctx)
}

func (d *Dispatcher) dispatchLine(ctx context.Context, line int, raw []byte) error {
	var msg rawMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return MalformedMessage{Line: line, Err: err}
	}

	switch msg.Type {
	case typeSchema:
		return d.handleSchema(line, msg)
	case typeRecord:
		return d.handleRecord(ctx, line, msg)
	case typeActivateVersion:
		return d.handleActivateVersion(ctx, line, msg)
	case typeState:
		d.lastState = msg.Value
		return nil
	default:
		return UnknownMessageType{Line: line, Type: msg.Type}
	}
}

func (d *Dispatcher) handleSchema(line int, msg rawMessage) error {
	if msg.Stream == "" || len(msg.Schema) == 0 {
		return MalformedMessage{Line: line, Err: fmt.Errorf("SCHEMA requires stream and schema")}
	}

	st, exists := d.streams[msg.Stream]
	if !exists {
		proc, err := stream.New(msg.Stream, msg.Schema, msg.KeyProperties, d.cfg)
		if err != nil {
			return MalformedMessage{Line: line, Err: err}
		}
		st = &streamState{proc: proc}
		d.streams[msg.Stream] = st
	} else if err := st.proc.SetSchema(msg.Schema, msg.KeyProperties); err != nil {
		return MalformedMessage{Line: line, Err: err}
	}

	tables, err := denorm.Denormalize(msg.Stream, st.proc.Schema, msg.KeyProperties)
	if err != nil {
		return err
	}
	st.tables = tables

	d.log.Info("schema received", "stream", msg.Stream, "tables", len(tables))
	return nil
}

func (d *Dispatcher) handleRecord(ctx context.Context, line int, msg rawMessage) error {
	if msg.Stream == "" {
		return MalformedMessage{Line: line, Err: fmt.Errorf("RECORD requires stream")}
	}
	st, ok := d.streams[msg.Stream]
	if !ok {
		return UnknownStreamError{Stream: msg.Stream, Line: line}
	}

	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader(msg.Record))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return MalformedMessage{Line: line, Err: err}
	}

	batch, bufferFull, err := st.proc.AddRecord(payload, msg.Version, msg.Sequence, msg.TimeExtracted)
	if err != nil {
		switch e := err.(type) {
		case stream.VersionOutOfOrderError:
			d.log.Warn("dropped out-of-order record", "err", e)
		case stream.SchemaValidationFailureError:
			d.log.Warn("invalid record", "err", e)
		default:
			return err
		}
	}

	if batch != nil {
		if err := d.flushBatch(ctx, msg.Stream, st, batch); err != nil {
			return err
		}
	}
	if bufferFull {
		if drained := st.proc.Flush(); drained != nil {
			if err := d.flushBatch(ctx, msg.Stream, st, drained); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Dispatcher) handleActivateVersion(ctx context.Context, line int, msg rawMessage) error {
	if msg.Stream == "" || msg.Version == nil {
		return MalformedMessage{Line: line, Err: fmt.Errorf("ACTIVATE_VERSION requires stream and version")}
	}
	st, ok := d.streams[msg.Stream]
	if !ok {
		return UnknownStreamError{Stream: msg.Stream, Line: line}
	}

	if batch := st.proc.ActivateVersion(*msg.Version); batch != nil {
		if err := d.flushBatch(ctx, msg.Stream, st, batch); err != nil {
			return err
		}
	}

	if err := d.engine.ActivateVersion(ctx, msg.Stream, st.tables, *msg.Version); err != nil {
		if stale, ok := err.(load.StaleVersionError); ok {
			d.log.Warn("stale activate-version ignored", "err", stale)
			st.pendingVersion = nil
			return nil
		}
		return err
	}

	st.pendingVersion = nil
	d.log.Info("activated version", "stream", msg.Stream, "version", *msg.Version)
	return nil
}

// flushBatch loads batch's records (upsert, or full-table-replacement if
// the batch was collected under an active version) and, on success, emits
// the most recently queued STATE message.
func (d *Dispatcher) flushBatch(ctx context.Context, streamName string, st *streamState, batch *stream.Batch) error {
	if batch == nil || len(batch.Records) == 0 {
		return nil
	}

	var err error
	if batch.Version != nil {
		err = d.engine.FlushFullTableReplacement(ctx, streamName, st.tables, batch.Records, *batch.Version)
	} else {
		err = d.engine.FlushUpsert(ctx, streamName, st.tables, batch.Records)
	}
	if err != nil {
		return err
	}

	if batch.Version != nil {
		v := *batch.Version
		st.pendingVersion = &v
	}

	d.log.Info("flushed batch", "stream", streamName, "rows", len(batch.Records))
	return d.emitState()
}

func (d *Dispatcher) emitState() error {
	if d.lastState == nil || d.out == nil {
		return nil
	}
	if _, err := d.out.Write(append(append([]byte{}, d.lastState...), '\n')); err != nil {
		return fmt.Errorf("dispatch: writing state: %w", err)
	}
	return nil
}

// flushAll drains and loads every stream's remaining buffer, then
// activates any full-table-replacement version left loaded but not yet
// swapped live — end-of-stream implicitly activates, same as an explicit
// ACTIVATE_VERSION message would.
func (d *Dispatcher) flushAll(ctx context.Context) error {
	for name, st := range d.streams {
		if drained := st.proc.Flush(); drained != nil {
			if err := d.flushBatch(ctx, name, st, drained); err != nil {
				return err
			}
		}
	}

	for name, st := range d.streams {
		if st.pendingVersion == nil {
			continue
		}
		version := *st.pendingVersion
		if err := d.engine.ActivateVersion(ctx, name, st.tables, version); err != nil {
			if stale, ok := err.(load.StaleVersionError); ok {
				d.log.Warn("stale end-of-stream activate ignored", "err", stale)
				st.pendingVersion = nil
				continue
			}
			return err
		}
		st.pendingVersion = nil
		d.log.Info("activated version at end of stream", "stream", name, "version", version)
	}

	return nil
}
