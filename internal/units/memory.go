package units

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps units in memory. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	units  map[int64]Unit
	nextID int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{units: make(map[int64]Unit), nextID: 1}
}

// Create assigns u an id and stores a copy.
func (s *MemoryStore) Create(_ context.Context, u *Unit) error {
	if err := u.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.nextID
	s.nextID++
	s.units[u.ID] = cloneUnit(*u)
	return nil
}

// Get returns the unit with id, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, id int64) (*Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneUnit(u)
	return &c, nil
}

// List returns every unit ordered by id.
func (s *MemoryStore) List(_ context.Context) ([]Unit, error) {
	return s.filter(func(Unit) bool { return true }), nil
}

// Active returns the active units ordered by id.
func (s *MemoryStore) Active(_ context.Context) ([]Unit, error) {
	return s.filter(func(u Unit) bool { return u.Active }), nil
}

// SetActive toggles a unit's active flag.
func (s *MemoryStore) SetActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[id]
	if !ok {
		return ErrNotFound
	}
	u.Active = active
	s.units[id] = u
	return nil
}

func (s *MemoryStore) filter(keep func(Unit) bool) []Unit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Unit, 0, len(s.units))
	for _, u := range s.units {
		if keep(u) {
			out = append(out, cloneUnit(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneUnit(u Unit) Unit {
	if u.Location != nil {
		loc := *u.Location
		u.Location = &loc
	}
	return u
}
