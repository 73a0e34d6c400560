// SPDX-License-Identifier: Apache-2.0

package stream_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pgsing/pgsing/pkg/stream"
)

const catSchema = `{
	"type": "object",
	"properties": {
		"id": {"type": "integer"},
		"name": {"type": "string"}
	},
	"required": ["id"]
}`

func TestProcessor_AddRecord_Basic(t *testing.T) {
	t.Parallel()

	p, err := stream.New("cats", []byte(catSchema), []string{"id"}, stream.DefaultConfig())
	require.NoError(t, err)

	seq := int64(1)
	flushed, full, err := p.AddRecord(map[string]any{"id": float64(1), "name": "Tom"}, nil, &seq, nil)
	require.NoError(t, err)
	require.Nil(t, flushed)
	require.False(t, full)

	batch := p.Flush()
	require.Len(t, batch.Records, 1)
	require.Equal(t, int64(1), batch.Records[0]["_sdc_sequence"])
}

func TestProcessor_InvalidRecordCollected(t *testing.T) {
	t.Parallel()

	cfg := stream.DefaultConfig()
	cfg.InvalidRecordsThreshold = 2
	p, err := stream.New("cats", []byte(catSchema), []string{"id"}, cfg)
	require.NoError(t, err)

	_, _, err = p.AddRecord(map[string]any{"name": "Tom"}, nil, nil, nil)
	require.Error(t, err)
	require.IsType(t, stream.SchemaValidationFailureError{}, err)

	_, _, err = p.AddRecord(map[string]any{"name": "Jerry"}, nil, nil, nil)
	require.Error(t, err)
	require.IsType(t, stream.SchemaValidationFailureError{}, err)

	_, _, err = p.AddRecord(map[string]any{"name": "Spike"}, nil, nil, nil)
	require.Error(t, err)
	require.IsType(t, stream.InvalidRecordsAboveThresholdError{}, err)
}

func TestProcessor_VersionOutOfOrderDropped(t *testing.T) {
	t.Parallel()

	p, err := stream.New("cats", []byte(catSchema), []string{"id"}, stream.DefaultConfig())
	require.NoError(t, err)

	v5 := int64(5)
	_, _, err = p.AddRecord(map[string]any{"id": float64(1)}, &v5, nil, nil)
	require.NoError(t, err)

	v2 := int64(2)
	_, _, err = p.AddRecord(map[string]any{"id": float64(2)}, &v2, nil, nil)
	require.Error(t, err)
	require.IsType(t, stream.VersionOutOfOrderError{}, err)
}

func TestProcessor_VersionBumpFlushesBuffer(t *testing.T) {
	t.Parallel()

	p, err := stream.New("cats", []byte(catSchema), []string{"id"}, stream.DefaultConfig())
	require.NoError(t, err)

	v0 := int64(0)
	_, _, err = p.AddRecord(map[string]any{"id": float64(1)}, &v0, nil, nil)
	require.NoError(t, err)

	v1 := int64(1)
	flushed, _, err := p.AddRecord(map[string]any{"id": float64(2)}, &v1, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, flushed)
	require.Len(t, flushed.Records, 1)
}
