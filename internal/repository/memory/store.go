// Package memory is an in-process record store with the same transactional
// contract as the SQL one. A transaction holds the store lock and restores a
// snapshot when its function fails.
package memory

import (
	"context"
	"fmt"
	"sync"

	"equipment_service/internal/models"
	"equipment_service/internal/repository"
)

type seqKey struct {
	name string
	year int
}

type tables struct {
	equipment     map[string]models.Equipment
	events        map[string]models.ServiceEvent
	contingencies map[string]models.Contingency
	tickets       map[string]models.Ticket
	sequences     map[seqKey]int
	parts         map[string]models.SparePart
	movements     []models.StockMovement
	users         map[int]models.User
	nextUserID    int
	activity      []models.Activity
}

func newTables() *tables {
	return &tables{
		equipment:     make(map[string]models.Equipment),
		events:        make(map[string]models.ServiceEvent),
		contingencies: make(map[string]models.Contingency),
		tickets:       make(map[string]models.Ticket),
		sequences:     make(map[seqKey]int),
		parts:         make(map[string]models.SparePart),
		users:         make(map[int]models.User),
	}
}

// snapshot copies every table. Stored values are never mutated in place, so
// copying the maps is enough.
func (t *tables) snapshot() *tables {
	s := &tables{
		equipment:     make(map[string]models.Equipment, len(t.equipment)),
		events:        make(map[string]models.ServiceEvent, len(t.events)),
		contingencies: make(map[string]models.Contingency, len(t.contingencies)),
		tickets:       make(map[string]models.Ticket, len(t.tickets)),
		sequences:     make(map[seqKey]int, len(t.sequences)),
		parts:         make(map[string]models.SparePart, len(t.parts)),
		movements:     append([]models.StockMovement(nil), t.movements...),
		users:         make(map[int]models.User, len(t.users)),
		nextUserID:    t.nextUserID,
		activity:      append([]models.Activity(nil), t.activity...),
	}
	for k, v := range t.equipment {
		s.equipment[k] = v
	}
	for k, v := range t.events {
		s.events[k] = v
	}
	for k, v := range t.contingencies {
		s.contingencies[k] = v
	}
	for k, v := range t.tickets {
		s.tickets[k] = v
	}
	for k, v := range t.sequences {
		s.sequences[k] = v
	}
	for k, v := range t.parts {
		s.parts[k] = v
	}
	for k, v := range t.users {
		s.users[k] = v
	}
	return s
}

type store struct {
	mu   sync.Mutex
	data *tables
}

// base is embedded by every table repo. Outside a transaction each call takes
// the store lock itself.
type base struct {
	s    *store
	inTx bool
}

func (b base) lock() func() {
	if b.inTx {
		return func() {}
	}
	b.s.mu.Lock()
	return b.s.mu.Unlock
}

// NewRepository returns an empty in-memory store.
func NewRepository() *repository.Repository {
	s := &store{data: newTables()}
	return repository.Assemble(s.repos(false), s)
}

func (s *store) repos(inTx bool) repository.Repository {
	b := base{s: s, inTx: inTx}
	return repository.Repository{
		Equipment:     &equipmentRepo{b},
		ServiceEvents: &eventRepo{b},
		Contingencies: &contingencyRepo{b},
		Tickets:       &ticketRepo{b},
		Sequences:     &sequenceRepo{b},
		Parts:         &partRepo{b},
		Movements:     &movementRepo{b},
		Auth:          &userRepo{b},
		Activity:      &activityRepo{b},
	}
}

func (s *store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx *repository.Repository) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.data.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.data = saved
			panic(p)
		}
	}()

	if err := fn(ctx, repository.Scoped(s.repos(true))); err != nil {
		s.data = saved
		return err
	}
	if err := ctx.Err(); err != nil {
		s.data = saved
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
