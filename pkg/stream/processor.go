// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/pgsing/pgsing/pkg/csm"
	"github.com/pgsing/pgsing/pkg/sdc"
)

// InvalidRecord is one record that failed validation against the current
// schema, retained for threshold accounting.
type InvalidRecord struct {
	Payload map[string]any
	Err     error
}

// Batch is a drained buffer: the enriched rows ready for flattening plus
// the replacement version in effect when they were collected (nil in
// upsert mode).
type Batch struct {
	Records []map[string]any
	Version *int64
}

// Processor owns one stream's buffer, current schema, and version state.
type Processor struct {
	Stream        string
	Schema        csm.Type
	KeyProperties []string
	UseUUIDPK     bool

	cfg      Config
	compiled *jsonschema.Schema

	currentVersion *int64
	buffer         []map[string]any
	rowCount       int
	byteSize       int64
	invalid        []InvalidRecord

	now func() time.Time
}

// New creates a Processor for stream, compiling rawSchema for record
// validation and simplifying it into the CSM used by denormalization.
func New(streamName string, rawSchema []byte, keyProperties []string, cfg Config) (*Processor, error) {
	p := &Processor{Stream: streamName, KeyProperties: keyProperties, cfg: cfg, now: time.Now}
	if err := p.SetSchema(rawSchema, keyProperties); err != nil {
		return nil, err
	}
	return p, nil
}

// SetSchema replaces the stream's current schema, as happens whenever a
// SCHEMA message arrives mid-stream.
func (p *Processor) SetSchema(rawSchema []byte, keyProperties []string) error {
	simplified, err := csm.Simplify(rawSchema)
	if err != nil {
		return err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(rawSchema))
	if err != nil {
		return err
	}

	compiler := jsonschema.NewCompiler()
	resourceURL := "stream://" + p.Stream
	if err := compiler.AddResource(resourceURL, doc); err != nil {
		return err
	}
	compiled, err := compiler.Compile(resourceURL)
	if err != nil {
		return err
	}

	p.Schema = simplified
	p.KeyProperties = keyProperties
	p.UseUUIDPK = len(keyProperties) == 0
	p.compiled = compiled
	return nil
}

// AddRecord validates and buffers one record. It returns a non-nil Batch
// when the incoming version is newer than the stream's current version,
// having flushed the prior buffer before accepting the new record; err is
// non-nil (but non-fatal, see VersionOutOfOrderError/SchemaValidationFailureError)
// for records that were dropped or merely collected as invalid, and fatal
// for InvalidRecordsAboveThresholdError.
func (p *Processor) AddRecord(payload map[string]any, version, sequence *int64, timeExtracted *string) (*Batch, bool, error) {
	var flushed *Batch

	if version != nil {
		if p.currentVersion != nil && *version < *p.currentVersion {
			return nil, false, VersionOutOfOrderError{Stream: p.Stream, Got: *version, Current: *p.currentVersion}
		}
		if p.currentVersion == nil || *version > *p.currentVersion {
			flushed = p.Flush()
			v := *version
			p.currentVersion = &v
		}
	}

	if err := p.compiled.Validate(payload); err != nil {
		p.invalid = append(p.invalid, InvalidRecord{Payload: payload, Err: err})
		if p.cfg.InvalidRecordsDetect && len(p.invalid) > p.cfg.InvalidRecordsThreshold {
			return flushed, false, InvalidRecordsAboveThresholdError{Stream: p.Stream, Count: len(p.invalid), Threshold: p.cfg.InvalidRecordsThreshold}
		}
		return flushed, false, SchemaValidationFailureError{Stream: p.Stream, Err: err}
	}

	enriched := make(map[string]any, len(payload)+5)
	for k, v := range payload {
		enriched[k] = v
	}

	batchedAt := p.now().UTC().Format(time.RFC3339)
	enriched[sdc.BatchedAt] = batchedAt
	if timeExtracted != nil {
		enriched[sdc.ReceivedAt] = *timeExtracted
	} else {
		enriched[sdc.ReceivedAt] = batchedAt
	}
	if sequence != nil {
		enriched[sdc.Sequence] = *sequence
	} else {
		enriched[sdc.Sequence] = p.now().Unix()
	}
	if p.currentVersion != nil {
		enriched[sdc.TableVersion] = *p.currentVersion
	} else {
		enriched[sdc.TableVersion] = int64(0)
	}

	p.buffer = append(p.buffer, enriched)
	p.rowCount++
	p.byteSize += approxSize(payload)

	bufferFull := p.rowCount >= p.cfg.MaxRows || (p.byteSize >= p.cfg.MaxBufferSize && p.rowCount > 0)

	return flushed, bufferFull, nil
}

// Flush drains and returns the buffer, resetting row/byte counters.
func (p *Processor) Flush() *Batch {
	if len(p.buffer) == 0 {
		return nil
	}
	b := &Batch{Records: p.buffer, Version: p.currentVersion}
	p.buffer = nil
	p.rowCount = 0
	p.byteSize = 0
	return b
}

// ActivateVersion flushes the buffer and marks version as the stream's
// new full-table-replacement generation.
func (p *Processor) ActivateVersion(version int64) *Batch {
	flushed := p.Flush()
	p.currentVersion = &version
	return flushed
}

// InvalidCount reports how many records have failed validation so far.
func (p *Processor) InvalidCount() int {
	return len(p.invalid)
}
