package metrics

import coremetrics "github.com/kmathy/carlink/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRefresh forwards the record to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordRefresh(r coremetrics.RefreshRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordRefresh(r); err != nil {
			return err
		}
	}
	return nil
}

// RecordOperation forwards the record to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordOperation(r coremetrics.OperationRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordOperation(r); err != nil {
			return err
		}
	}
	return nil
}
