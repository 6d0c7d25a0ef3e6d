package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"equipment_service/internal/models"
	"equipment_service/internal/repository"

	"github.com/google/uuid"
)

type equipmentRepo struct{ base }

func (r *equipmentRepo) Create(_ context.Context, e models.Equipment) error {
	defer r.lock()()
	if _, ok := r.s.data.equipment[e.ID]; ok {
		return fmt.Errorf("insert equipment %q: %w", e.ID, repository.ErrDuplicate)
	}
	for _, other := range r.s.data.equipment {
		if other.Code == e.Code {
			return fmt.Errorf("insert equipment %q: %w", e.Code, repository.ErrDuplicate)
		}
	}
	r.s.data.equipment[e.ID] = cloneEquipment(e)
	return nil
}

func (r *equipmentRepo) Get(_ context.Context, id string) (models.Equipment, error) {
	defer r.lock()()
	e, ok := r.s.data.equipment[id]
	if !ok {
		return models.Equipment{}, repository.ErrNotFound
	}
	return cloneEquipment(e), nil
}

func (r *equipmentRepo) List(_ context.Context, f repository.EquipmentFilter) ([]models.Equipment, error) {
	defer r.lock()()
	out := make([]models.Equipment, 0, len(r.s.data.equipment))
	for _, e := range r.s.data.equipment {
		if f.Department != "" && e.Department != f.Department {
			continue
		}
		if f.RiskClass != "" && e.RiskClass != f.RiskClass {
			continue
		}
		if f.State != "" && e.ServiceState != f.State {
			continue
		}
		out = append(out, cloneEquipment(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *equipmentRepo) Update(_ context.Context, e *models.Equipment) error {
	defer r.lock()()
	cur, ok := r.s.data.equipment[e.ID]
	if !ok || cur.Version != e.Version {
		return repository.ErrStaleVersion
	}
	e.Version++
	e.Code, e.CreatedAt = cur.Code, cur.CreatedAt
	r.s.data.equipment[e.ID] = cloneEquipment(*e)
	return nil
}

type eventRepo struct{ base }

func (r *eventRepo) Create(_ context.Context, e models.ServiceEvent) error {
	defer r.lock()()
	if _, ok := r.s.data.events[e.ID]; ok {
		return fmt.Errorf("insert service event %q: duplicate id", e.ID)
	}
	r.s.data.events[e.ID] = cloneEvent(e)
	return nil
}

func (r *eventRepo) Get(_ context.Context, id string) (models.ServiceEvent, error) {
	defer r.lock()()
	e, ok := r.s.data.events[id]
	if !ok {
		return models.ServiceEvent{}, repository.ErrNotFound
	}
	return cloneEvent(e), nil
}

func (r *eventRepo) Update(_ context.Context, e *models.ServiceEvent) error {
	defer r.lock()()
	cur, ok := r.s.data.events[e.ID]
	if !ok || cur.Version != e.Version {
		return repository.ErrStaleVersion
	}
	e.Version++
	r.s.data.events[e.ID] = cloneEvent(*e)
	return nil
}

func (r *eventRepo) List(_ context.Context, f repository.EventFilter) ([]models.ServiceEvent, error) {
	defer r.lock()()
	return r.filter(func(e models.ServiceEvent) bool {
		switch {
		case f.EquipmentID != "" && e.EquipmentID != f.EquipmentID:
			return false
		case f.Kind != "" && e.Kind != f.Kind:
			return false
		case f.State != "" && e.State != f.State:
			return false
		case !f.From.IsZero() && e.ScheduledDate.Before(f.From):
			return false
		case !f.To.IsZero() && e.ScheduledDate.After(f.To):
			return false
		}
		return true
	}), nil
}

func (r *eventRepo) FindOpen(_ context.Context, equipmentID string, kind models.EventKind, from, to time.Time) ([]models.ServiceEvent, error) {
	defer r.lock()()
	return r.filter(func(e models.ServiceEvent) bool {
		return e.EquipmentID == equipmentID && e.Kind == kind && e.IsOpen() &&
			!e.ScheduledDate.Before(from) && !e.ScheduledDate.After(to)
	}), nil
}

func (r *eventRepo) ListOverdue(_ context.Context, now time.Time) ([]models.ServiceEvent, error) {
	defer r.lock()()
	return r.filter(func(e models.ServiceEvent) bool { return e.IsOverdue(now) }), nil
}

// filter expects the lock to be held.
func (r *eventRepo) filter(keep func(models.ServiceEvent) bool) []models.ServiceEvent {
	var out []models.ServiceEvent
	for _, e := range r.s.data.events {
		if keep(e) {
			out = append(out, cloneEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledDate.Before(out[j].ScheduledDate)
	})
	return out
}

type contingencyRepo struct{ base }

func (r *contingencyRepo) Create(_ context.Context, c models.Contingency) error {
	defer r.lock()()
	if _, ok := r.s.data.contingencies[c.ID]; ok {
		return fmt.Errorf("insert contingency %q: duplicate id", c.ID)
	}
	r.s.data.contingencies[c.ID] = cloneContingency(c)
	return nil
}

func (r *contingencyRepo) Get(_ context.Context, id string) (models.Contingency, error) {
	defer r.lock()()
	c, ok := r.s.data.contingencies[id]
	if !ok {
		return models.Contingency{}, repository.ErrNotFound
	}
	return cloneContingency(c), nil
}

func (r *contingencyRepo) Update(_ context.Context, c *models.Contingency) error {
	defer r.lock()()
	cur, ok := r.s.data.contingencies[c.ID]
	if !ok || cur.Version != c.Version {
		return repository.ErrStaleVersion
	}
	c.Version++
	r.s.data.contingencies[c.ID] = cloneContingency(*c)
	return nil
}

func (r *contingencyRepo) List(_ context.Context, f repository.ContingencyFilter) ([]models.Contingency, error) {
	defer r.lock()()
	out := r.filter(func(c models.Contingency) bool {
		switch {
		case f.EquipmentID != "" && c.EquipmentID != f.EquipmentID:
			return false
		case f.State != "" && c.State != f.State:
			return false
		case f.Severity != "" && c.Severity != f.Severity:
			return false
		}
		return true
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReportedAt.After(out[j].ReportedAt) })
	return out, nil
}

func (r *contingencyRepo) ListExpired(_ context.Context, now time.Time) ([]models.Contingency, error) {
	defer r.lock()()
	out := r.filter(func(c models.Contingency) bool { return c.DeadlineExpired(now) })
	sort.SliceStable(out, func(i, j int) bool { return out[i].ResolutionDeadline.Before(out[j].ResolutionDeadline) })
	return out, nil
}

func (r *contingencyRepo) CountOpen(_ context.Context, equipmentID string) (int, error) {
	defer r.lock()()
	return len(r.filter(func(c models.Contingency) bool { return c.EquipmentID == equipmentID && c.IsOpen() })), nil
}

func (r *contingencyRepo) filter(keep func(models.Contingency) bool) []models.Contingency {
	var out []models.Contingency
	for _, c := range r.s.data.contingencies {
		if keep(c) {
			out = append(out, cloneContingency(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type ticketRepo struct{ base }

func (r *ticketRepo) Create(_ context.Context, t models.Ticket) error {
	defer r.lock()()
	for _, other := range r.s.data.tickets {
		if other.ID == t.ID || other.Number == t.Number {
			return fmt.Errorf("insert ticket %q: duplicate", t.Number)
		}
	}
	r.s.data.tickets[t.ID] = cloneTicket(t)
	return nil
}

func (r *ticketRepo) Get(_ context.Context, id string) (models.Ticket, error) {
	defer r.lock()()
	t, ok := r.s.data.tickets[id]
	if !ok {
		return models.Ticket{}, repository.ErrNotFound
	}
	return cloneTicket(t), nil
}

func (r *ticketRepo) Update(_ context.Context, t *models.Ticket) error {
	defer r.lock()()
	cur, ok := r.s.data.tickets[t.ID]
	if !ok || cur.Version != t.Version {
		return repository.ErrStaleVersion
	}
	t.Version++
	r.s.data.tickets[t.ID] = cloneTicket(*t)
	return nil
}

func (r *ticketRepo) List(_ context.Context, f repository.TicketFilter) ([]models.Ticket, error) {
	defer r.lock()()
	var out []models.Ticket
	for _, t := range r.s.data.tickets {
		switch {
		case f.Category != "" && t.Category != f.Category:
			continue
		case f.State != "" && t.State != f.State:
			continue
		case f.AssigneeID != nil && (t.AssigneeID == nil || *t.AssigneeID != *f.AssigneeID):
			continue
		case f.OpenOnly && !t.IsOpen():
			continue
		}
		out = append(out, cloneTicket(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Number < out[j].Number
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *ticketRepo) CountOpen(_ context.Context, equipmentID string) (int, error) {
	defer r.lock()()
	n := 0
	for _, t := range r.s.data.tickets {
		if t.EquipmentID != nil && *t.EquipmentID == equipmentID && t.IsOpen() {
			n++
		}
	}
	return n, nil
}

type sequenceRepo struct{ base }

func (r *sequenceRepo) Next(_ context.Context, name string, year int) (int, error) {
	defer r.lock()()
	k := seqKey{name: name, year: year}
	r.s.data.sequences[k]++
	return r.s.data.sequences[k], nil
}

type partRepo struct{ base }

func (r *partRepo) Create(_ context.Context, p models.SparePart) error {
	defer r.lock()()
	for _, other := range r.s.data.parts {
		if other.ID == p.ID || other.Code == p.Code {
			return fmt.Errorf("insert spare part %q: %w", p.Code, repository.ErrDuplicate)
		}
	}
	r.s.data.parts[p.ID] = clonePart(p)
	return nil
}

func (r *partRepo) Get(_ context.Context, id string) (models.SparePart, error) {
	defer r.lock()()
	p, ok := r.s.data.parts[id]
	if !ok {
		return models.SparePart{}, repository.ErrNotFound
	}
	return clonePart(p), nil
}

func (r *partRepo) Update(_ context.Context, p *models.SparePart) error {
	defer r.lock()()
	cur, ok := r.s.data.parts[p.ID]
	if !ok || cur.Version != p.Version {
		return repository.ErrStaleVersion
	}
	if p.QuantityOnHand < 0 {
		return fmt.Errorf("update spare part %q: negative quantity", p.ID)
	}
	p.Version++
	p.Code = cur.Code
	r.s.data.parts[p.ID] = clonePart(*p)
	return nil
}

func (r *partRepo) List(_ context.Context) ([]models.SparePart, error) {
	defer r.lock()()
	out := make([]models.SparePart, 0, len(r.s.data.parts))
	for _, p := range r.s.data.parts {
		out = append(out, clonePart(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

type movementRepo struct{ base }

func (r *movementRepo) Append(_ context.Context, m models.StockMovement) error {
	defer r.lock()()
	if _, ok := r.s.data.parts[m.PartID]; !ok {
		return fmt.Errorf("insert stock movement for %q: unknown part", m.PartID)
	}
	r.s.data.movements = append(r.s.data.movements, m)
	return nil
}

func (r *movementRepo) ListByPart(_ context.Context, partID string) ([]models.StockMovement, error) {
	defer r.lock()()
	var out []models.StockMovement
	for _, m := range r.s.data.movements {
		if m.PartID == partID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

type userRepo struct{ base }

func (r *userRepo) Create(_ context.Context, u models.User) (int, error) {
	defer r.lock()()
	for _, other := range r.s.data.users {
		if other.Username == u.Username {
			return 0, fmt.Errorf("insert user %q: duplicate username", u.Username)
		}
	}
	r.s.data.nextUserID++
	u.ID = r.s.data.nextUserID
	r.s.data.users[u.ID] = u
	return u.ID, nil
}

func (r *userRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	defer r.lock()()
	for _, u := range r.s.data.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *userRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	defer r.lock()()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *userRepo) ListAgents(_ context.Context, q repository.AgentQuery) ([]models.AgentLoad, error) {
	defer r.lock()()
	load := make(map[int]int)
	for _, t := range r.s.data.tickets {
		if t.AssigneeID != nil && t.IsOpen() {
			load[*t.AssigneeID]++
		}
	}
	var out []models.AgentLoad
	for _, u := range r.s.data.users {
		if !u.Active || u.Category != q.Category {
			continue
		}
		if q.Department != "" && u.Department != q.Department {
			continue
		}
		if len(q.Roles) > 0 && !hasRole(q.Roles, u.Role) {
			continue
		}
		out = append(out, models.AgentLoad{User: u, OpenTickets: load[u.ID]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenTickets != out[j].OpenTickets {
			return out[i].OpenTickets < out[j].OpenTickets
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func hasRole(roles []models.Role, r models.Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}

type activityRepo struct{ base }

func (r *activityRepo) Append(_ context.Context, a models.Activity) error {
	defer r.lock()()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = time.Now().UTC()
	}
	a.Type = strings.ToUpper(strings.TrimSpace(a.Type))
	r.s.data.activity = append(r.s.data.activity, a)
	return nil
}

func (r *activityRepo) List(_ context.Context, f repository.ActivityFilter) ([]models.Activity, error) {
	defer r.lock()()
	typ := strings.ToUpper(strings.TrimSpace(f.Type))
	out := make([]models.Activity, 0, len(r.s.data.activity))
	for _, a := range r.s.data.activity {
		switch {
		case !f.From.IsZero() && a.OccurredAt.Before(f.From):
			continue
		case !f.To.IsZero() && a.OccurredAt.After(f.To):
			continue
		case typ != "" && a.Type != typ:
			continue
		case f.Entity != "" && a.Entity != f.Entity:
			continue
		case f.EntityID != "" && a.EntityID != f.EntityID:
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}
