package garage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmathy/carlink/core/model"
)

func TestSetAndGet(t *testing.T) {
	s := NewMemoryStore()

	_, ok := s.Get("VIN123", model.DomainCharging)
	assert.False(t, ok)

	s.Set("VIN123", model.DomainCharging, json.RawMessage(`{"soc":42}`))
	snap, ok := s.Get("VIN123", model.DomainCharging)
	require.True(t, ok)
	assert.Equal(t, model.DomainCharging, snap.Domain)
	assert.JSONEq(t, `{"soc":42}`, string(snap.Data))
	assert.False(t, snap.FetchedAt.IsZero())
}

func TestSetOverwritesPreviousSnapshot(t *testing.T) {
	s := NewMemoryStore()
	s.Set("VIN123", model.DomainStatus, json.RawMessage(`{"locked":false}`))
	s.Set("VIN123", model.DomainStatus, json.RawMessage(`{"locked":true}`))

	snap, ok := s.Get("VIN123", model.DomainStatus)
	require.True(t, ok)
	assert.JSONEq(t, `{"locked":true}`, string(snap.Data))
}

func TestSnapshotsOrderedByDomain(t *testing.T) {
	s := NewMemoryStore()
	s.Set("VIN123", model.DomainStatus, json.RawMessage(`{}`))
	s.Set("VIN123", model.DomainCharging, json.RawMessage(`{}`))
	s.Set("VIN123", model.DomainAirConditioning, json.RawMessage(`{}`))

	snaps := s.Snapshots("VIN123")
	require.Len(t, snaps, 3)
	assert.Equal(t, model.DomainAirConditioning, snaps[0].Domain)
	assert.Equal(t, model.DomainCharging, snaps[1].Domain)
	assert.Equal(t, model.DomainStatus, snaps[2].Domain)
}

func TestVINsSortedAcrossVehicles(t *testing.T) {
	s := NewMemoryStore()
	s.Set("VIN456", model.DomainCharging, json.RawMessage(`{}`))
	s.Set("VIN123", model.DomainCharging, json.RawMessage(`{}`))

	assert.Equal(t, []string{"VIN123", "VIN456"}, s.VINs())
	assert.Empty(t, s.Snapshots("VIN999"))
}
