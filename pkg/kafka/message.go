package kafka

import (
	"encoding/json"
	"time"

	"github.com/vicc-go/disease-normalizer/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Parsed content
	RecordUpsert *RecordUpsertMessage
}

// RecordUpsertMessage carries a single source record to add or replace
type RecordUpsertMessage struct {
	Type      string              `json:"type"` // "record.upsert"
	Record    models.SourceRecord `json:"record"`
	Timestamp time.Time           `json:"timestamp"`
}

// RebuildRequestedMessage asks the normalizer to rebuild its merge groups
type RebuildRequestedMessage struct {
	Type        string    `json:"type"` // "rebuild.requested"
	RequestedBy string    `json:"requested_by,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ParseRecordUpsert parses the message value as a record upsert
func (m *IncomingMessage) ParseRecordUpsert() error {
	var msg RecordUpsertMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return err
	}
	m.RecordUpsert = &msg
	return nil
}

// IsRecordUpsert checks if the message is a record upsert
func (m *IncomingMessage) IsRecordUpsert() bool {
	if msgType := m.Headers["type"]; msgType == "record.upsert" {
		return true
	}

	var msg RecordUpsertMessage
	if err := json.Unmarshal(m.Value, &msg); err == nil {
		return msg.Type == "record.upsert"
	}

	return false
}

// IsRebuildRequested checks if the message is a rebuild request
func (m *IncomingMessage) IsRebuildRequested() bool {
	if msgType := m.Headers["type"]; msgType == "rebuild.requested" {
		return true
	}

	var msg RebuildRequestedMessage
	if err := json.Unmarshal(m.Value, &msg); err == nil {
		return msg.Type == "rebuild.requested"
	}

	return false
}

// ParseRebuildRequested parses the message as a rebuild request
func (m *IncomingMessage) ParseRebuildRequested() (*RebuildRequestedMessage, error) {
	var msg RebuildRequestedMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetConceptID returns the concept ID the message is about
func (m *IncomingMessage) GetConceptID() string {
	if m.RecordUpsert != nil && m.RecordUpsert.Record.ConceptID != "" {
		return m.RecordUpsert.Record.ConceptID
	}
	return m.Key
}
