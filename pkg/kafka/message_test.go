package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncomingMessage_RecordUpsert(t *testing.T) {
	msg := &IncomingMessage{
		Key:   "ncit:C2926",
		Value: []byte(`{"type": "record.upsert", "record": {"concept_id": "ncit:C2926", "source_name": "NCIt", "label": "Lung Non-Small Cell Carcinoma"}}`),
	}

	assert.True(t, msg.IsRecordUpsert())
	require.NoError(t, msg.ParseRecordUpsert())
	require.NotNil(t, msg.RecordUpsert)
	assert.Equal(t, "ncit:C2926", msg.RecordUpsert.Record.ConceptID)
	assert.Equal(t, "ncit:C2926", msg.GetConceptID())
}

func TestIncomingMessage_RecordUpsertHeader(t *testing.T) {
	msg := &IncomingMessage{
		Headers: map[string]string{"type": "record.upsert"},
		Value:   []byte(`{}`),
	}
	assert.True(t, msg.IsRecordUpsert())
}

func TestIncomingMessage_RebuildRequested(t *testing.T) {
	msg := &IncomingMessage{
		Value: []byte(`{"type": "rebuild.requested", "requested_by": "ops"}`),
	}

	assert.True(t, msg.IsRebuildRequested())
	assert.False(t, msg.IsRecordUpsert())

	parsed, err := msg.ParseRebuildRequested()
	require.NoError(t, err)
	assert.Equal(t, "ops", parsed.RequestedBy)
}

func TestIncomingMessage_UnknownPayload(t *testing.T) {
	msg := &IncomingMessage{
		Key:   "some-key",
		Value: []byte(`{"type": "something.else"}`),
	}

	assert.False(t, msg.IsRecordUpsert())
	assert.False(t, msg.IsRebuildRequested())
	assert.Equal(t, "some-key", msg.GetConceptID())
}
