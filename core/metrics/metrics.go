package metrics

import (
	"time"

	"github.com/kmathy/carlink/core/model"
)

// RefreshRecord describes one finished retrieval.
type RefreshRecord struct {
	VIN     string
	Domain  model.Domain
	Success bool
	Elapsed time.Duration
}

// OperationRecord describes one resolved operation.
type OperationRecord struct {
	OperationID string
	VIN         string
	Status      string
	ErrorCode   string
	Elapsed     time.Duration
}

// Sink records coordination outcomes for observability purposes.
type Sink interface {
	RecordRefresh(RefreshRecord) error
	RecordOperation(OperationRecord) error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordRefresh(RefreshRecord) error     { return nil }
func (NopSink) RecordOperation(OperationRecord) error { return nil }
