package mqtt

import "fmt"

// Event type segments used by the broker. The topic layout is
// {user_id}/{vin}/{event_type}/{path...}.
var eventTypes = []string{
	"operation-request",
	"service-event",
	"account-event",
	"vehicle-event",
}

// subscriptionFilters returns the topic filters covering every event type
// for the given user and vehicles.
func subscriptionFilters(userID string, vins []string) []string {
	filters := make([]string, 0, len(vins)*len(eventTypes))
	for _, vin := range vins {
		for _, et := range eventTypes {
			filters = append(filters, fmt.Sprintf("%s/%s/%s/#", userID, vin, et))
		}
	}
	return filters
}
