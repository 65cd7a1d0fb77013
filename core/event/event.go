package event

import (
	"encoding/json"
	"time"
)

// Type discriminates the event families delivered by the broker. The value
// matches the third segment of the topic.
type Type string

const (
	TypeOperation    Type = "operation-request"
	TypeServiceEvent Type = "service-event"
	TypeAccountEvent Type = "account-event"
	TypeVehicleEvent Type = "vehicle-event"
)

// OperationStatus is the lifecycle state reported for a tracked operation.
type OperationStatus string

const (
	StatusInProgress       OperationStatus = "IN_PROGRESS"
	StatusCompletedSuccess OperationStatus = "COMPLETED_SUCCESS"
	StatusCompletedWarning OperationStatus = "COMPLETED_WARNING"
	StatusCompletedFailure OperationStatus = "COMPLETED_FAILURE"
	StatusError            OperationStatus = "ERROR"
)

// Terminal reports whether the status ends tracking of an operation.
func (s OperationStatus) Terminal() bool {
	switch s {
	case StatusCompletedSuccess, StatusCompletedWarning, StatusCompletedFailure, StatusError:
		return true
	}
	return false
}

// OperationPayload is the body of an operation-request message.
type OperationPayload struct {
	Version   int             `json:"version"`
	TraceID   string          `json:"traceId"`
	RequestID string          `json:"requestId"`
	Operation string          `json:"operation"`
	Status    OperationStatus `json:"status"`
	ErrorCode string          `json:"errorCode,omitempty"`
}

// Event is one decoded broker message. Exactly one of Operation, Service,
// Account or Vehicle is set, according to Kind.
type Event struct {
	Kind      Type
	UserID    string
	VIN       string
	Timestamp time.Time

	Operation *OperationPayload
	Service   *ServicePayload
	Account   *AccountPayload
	Vehicle   *VehiclePayload
}

// ServicePayload carries an unsolicited state-change notification. Data is
// frequently empty: the event only signals that something changed in Topic.
type ServicePayload struct {
	// Topic is the category path after the event type segment,
	// e.g. "charging" or "vehicle-status/access".
	Topic   string
	Version int             `json:"version"`
	TraceID string          `json:"traceId"`
	Name    string          `json:"name"`
	Data    json.RawMessage `json:"data"`
}

// AccountPayload carries account-level notifications such as privacy changes.
type AccountPayload struct {
	Topic string
	Raw   json.RawMessage
}

// VehiclePayload carries informational vehicle events not correlated to an
// outstanding operation.
type VehiclePayload struct {
	Topic string
	Raw   json.RawMessage
}
