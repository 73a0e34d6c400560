// SPDX-License-Identifier: Apache-2.0

package dispatch_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pgsing/pgsing/pkg/denorm"
	"github.com/pgsing/pgsing/pkg/dispatch"
	"github.com/pgsing/pgsing/pkg/load"
	"github.com/pgsing/pgsing/pkg/stream"
)

const catSchema = `{"type":"object","properties":{"id":{"type":"integer"}}}`

// fakeLoader stands in for *load.Engine: every call appends a marker to
// log (shared with the test's output writer) so ordering between a flush
// and the STATE line it unblocks can be asserted, not just the final
// counts.
type fakeLoader struct {
	log *[]string

	flushUpsertErr      error
	flushReplacementErr error
	activateErr         error

	upsertCalls     int
	replacementCall *struct {
		stream  string
		version int64
	}
	activateCalls []struct {
		stream  string
		version int64
	}
}

func (f *fakeLoader) FlushUpsert(ctx context.Context, streamName string, tables []denorm.LogicalTable, records []map[string]any) error {
	f.upsertCalls++
	*f.log = append(*f.log, "flush-upsert")
	return f.flushUpsertErr
}

func (f *fakeLoader) FlushFullTableReplacement(ctx context.Context, streamName string, tables []denorm.LogicalTable, records []map[string]any, version int64) error {
	f.replacementCall = &struct {
		stream  string
		version int64
	}{streamName, version}
	*f.log = append(*f.log, "flush-replacement")
	return f.flushReplacementErr
}

func (f *fakeLoader) ActivateVersion(ctx context.Context, streamName string, tables []denorm.LogicalTable, version int64) error {
	f.activateCalls = append(f.activateCalls, struct {
		stream  string
		version int64
	}{streamName, version})
	*f.log = append(*f.log, "activate")
	return f.activateErr
}

// loggingWriter records a "state" marker into the same shared log as
// fakeLoader, so tests can assert a STATE line is written strictly after
// the flush that unblocks it, not before.
type loggingWriter struct {
	log *[]string
	buf strings.Builder
}

func (w *loggingWriter) Write(p []byte) (int, error) {
	*w.log = append(*w.log, "write-state")
	return w.buf.Write(p)
}

func TestDispatcher_RecordBeforeSchemaIsUnknownStream(t *testing.T) {
	t.Parallel()

	var log []string
	loader := &fakeLoader{log: &log}
	d := dispatch.New(loader, stream.DefaultConfig(), &loggingWriter{log: &log}, dispatch.NopLogger{})

	err := d.Run(t.Context(), strings.NewReader(`{"type":"RECORD","stream":"cats","record":{"id":1}}`+"\n"))
	require.Error(t, err)
	require.IsType(t, dispatch.UnknownStreamError{}, err)
}

func TestDispatcher_ActivateVersionBeforeSchemaIsUnknownStream(t *testing.T) {
	t.Parallel()

	var log []string
	loader := &fakeLoader{log: &log}
	d := dispatch.New(loader, stream.DefaultConfig(), &loggingWriter{log: &log}, dispatch.NopLogger{})

	err := d.Run(t.Context(), strings.NewReader(`{"type":"ACTIVATE_VERSION","stream":"cats","version":1}`+"\n"))
	require.Error(t, err)
	require.IsType(t, dispatch.UnknownStreamError{}, err)
}

func TestDispatcher_StateEchoedOnlyAfterFlush(t *testing.T) {
	t.Parallel()

	var log []string
	loader := &fakeLoader{log: &log}
	out := &loggingWriter{log: &log}

	cfg := stream.DefaultConfig()
	cfg.MaxRows = 1 // every RECORD fills the buffer and forces an immediate flush

	d := dispatch.New(loader, cfg, out, dispatch.NopLogger{})

	lines := strings.Join([]string{
		`{"type":"SCHEMA","stream":"cats","schema":` + catSchema + `,"key_properties":["id"]}`,
		`{"type":"RECORD","stream":"cats","record":{"id":1}}`, // flushes immediately, lastState still nil
		`{"type":"STATE","value":{"v":1}}`,
		`{"type":"RECORD","stream":"cats","record":{"id":2}}`, // flushes again, now emits {"v":1}
	}, "\n") + "\n"

	err := d.Run(t.Context(), strings.NewReader(lines))
	require.NoError(t, err)

	require.Equal(t, 2, loader.upsertCalls)
	require.Equal(t, `{"v":1}`+"\n", out.buf.String())

	// The write must come after both flushes it was queued behind, not
	// interleaved before the second one.
	require.Equal(t, []string{"flush-upsert", "flush-upsert", "write-state"}, log)
}

func TestDispatcher_VersionBumpActivatesAtEndOfStreamWithoutExplicitMessage(t *testing.T) {
	t.Parallel()

	var log []string
	loader := &fakeLoader{log: &log}
	out := &loggingWriter{log: &log}

	d := dispatch.New(loader, stream.DefaultConfig(), out, dispatch.NopLogger{})

	lines := strings.Join([]string{
		`{"type":"SCHEMA","stream":"cats","schema":` + catSchema + `,"key_properties":["id"]}`,
		`{"type":"RECORD","stream":"cats","record":{"id":1},"version":1}`,
	}, "\n") + "\n"

	err := d.Run(t.Context(), strings.NewReader(lines))
	require.NoError(t, err)

	require.NotNil(t, loader.replacementCall)
	require.Equal(t, "cats", loader.replacementCall.stream)
	require.Equal(t, int64(1), loader.replacementCall.version)

	require.Len(t, loader.activateCalls, 1)
	require.Equal(t, "cats", loader.activateCalls[0].stream)
	require.Equal(t, int64(1), loader.activateCalls[0].version)

	require.Equal(t, []string{"flush-replacement", "activate"}, log)
}

func TestDispatcher_StaleActivateAtEndOfStreamIsIgnored(t *testing.T) {
	t.Parallel()

	var log []string
	loader := &fakeLoader{log: &log, activateErr: load.StaleVersionError{Stream: "cats", Got: 1, Current: 5}}
	out := &loggingWriter{log: &log}

	d := dispatch.New(loader, stream.DefaultConfig(), out, dispatch.NopLogger{})

	lines := strings.Join([]string{
		`{"type":"SCHEMA","stream":"cats","schema":` + catSchema + `,"key_properties":["id"]}`,
		`{"type":"RECORD","stream":"cats","record":{"id":1},"version":1}`,
	}, "\n") + "\n"

	err := d.Run(t.Context(), strings.NewReader(lines))
	require.NoError(t, err, "a stale end-of-stream activation is a no-op, not a failure")
	require.Len(t, loader.activateCalls, 1)
}
