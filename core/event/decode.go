package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownTopic is returned when a topic does not follow the
// {user}/{vin}/{event-type}/{path} layout or names an unknown event type.
var ErrUnknownTopic = errors.New("unknown topic")

// DecodeError wraps decode failures with the offending topic.
type DecodeError struct {
	Topic string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Topic, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode classifies a raw broker message into an Event.
//
// Classification is driven by the topic structure alone. Payload parsing is
// best-effort: an operation payload that does not parse is a decode error
// (the tracker cannot correlate it), but a service payload that does not
// parse still yields a valid event with empty data, matching the near-empty
// service events the broker routinely emits.
func Decode(topic string, payload []byte) (Event, error) {
	parts := strings.SplitN(topic, "/", 4)
	if len(parts) < 4 {
		return Event{}, &DecodeError{Topic: topic, Err: ErrUnknownTopic}
	}
	userID, vin, kind, path := parts[0], parts[1], parts[2], parts[3]

	ev := Event{
		UserID:    userID,
		VIN:       vin,
		Timestamp: time.Now().UTC(),
	}

	switch Type(kind) {
	case TypeOperation:
		var op OperationPayload
		if err := json.Unmarshal(payload, &op); err != nil {
			return Event{}, &DecodeError{Topic: topic, Err: err}
		}
		ev.Kind = TypeOperation
		ev.Operation = &op
	case TypeServiceEvent:
		svc := ServicePayload{Topic: path}
		// Empty or malformed bodies still signal a change.
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &svc); err != nil {
				svc = ServicePayload{Topic: path}
			}
		}
		ev.Kind = TypeServiceEvent
		ev.Service = &svc
	case TypeAccountEvent:
		ev.Kind = TypeAccountEvent
		ev.Account = &AccountPayload{Topic: path, Raw: append([]byte(nil), payload...)}
	case TypeVehicleEvent:
		ev.Kind = TypeVehicleEvent
		ev.Vehicle = &VehiclePayload{Topic: path, Raw: append([]byte(nil), payload...)}
	default:
		return Event{}, &DecodeError{Topic: topic, Err: ErrUnknownTopic}
	}
	return ev, nil
}
