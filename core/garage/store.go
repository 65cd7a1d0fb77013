package garage

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/kmathy/carlink/core/model"
)

// Snapshot is one cached domain payload with its retrieval time.
type Snapshot struct {
	Domain    model.Domain    `json:"domain"`
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Store caches the most recent data per vehicle and domain. Listeners pull
// from it after an update notification instead of receiving payloads inline.
type Store interface {
	Set(vin string, domain model.Domain, data json.RawMessage)
	Get(vin string, domain model.Domain) (Snapshot, bool)
	Snapshots(vin string) []Snapshot
	VINs() []string
}

// MemoryStore is the in-memory Store used for a single client session.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[model.Domain]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[model.Domain]Snapshot{}}
}

func (s *MemoryStore) Set(vin string, domain model.Domain, data json.RawMessage) {
	s.mu.Lock()
	byDomain := s.data[vin]
	if byDomain == nil {
		byDomain = map[model.Domain]Snapshot{}
		s.data[vin] = byDomain
	}
	byDomain[domain] = Snapshot{Domain: domain, Data: data, FetchedAt: time.Now()}
	s.mu.Unlock()
}

func (s *MemoryStore) Get(vin string, domain model.Domain) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.data[vin][domain]
	return snap, ok
}

// Snapshots returns all cached domains for a vehicle, ordered by domain.
func (s *MemoryStore) Snapshots(vin string) []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Snapshot, 0, len(s.data[vin]))
	for _, snap := range s.data[vin] {
		res = append(res, snap)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Domain < res[j].Domain })
	return res
}

func (s *MemoryStore) VINs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vins := make([]string, 0, len(s.data))
	for vin := range s.data {
		vins = append(vins, vin)
	}
	sort.Strings(vins)
	return vins
}
