package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionFilters(t *testing.T) {
	filters := subscriptionFilters("user-1", []string{"VIN123", "VIN456"})
	assert.Equal(t, []string{
		"user-1/VIN123/operation-request/#",
		"user-1/VIN123/service-event/#",
		"user-1/VIN123/account-event/#",
		"user-1/VIN123/vehicle-event/#",
		"user-1/VIN456/operation-request/#",
		"user-1/VIN456/service-event/#",
		"user-1/VIN456/account-event/#",
		"user-1/VIN456/vehicle-event/#",
	}, filters)
}

func TestSubscriptionFiltersNoVehicles(t *testing.T) {
	assert.Empty(t, subscriptionFilters("user-1", nil))
}
