package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"equipment_service/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStaleVersion is returned when an optimistic update lost the race.
	ErrStaleVersion = errors.New("record was modified by a concurrent transaction")
	// ErrDuplicate is returned when an insert collides with a unique key.
	ErrDuplicate = errors.New("duplicate record")
)

type EquipmentRepo interface {
	Create(ctx context.Context, e models.Equipment) error
	Get(ctx context.Context, id string) (models.Equipment, error)
	List(ctx context.Context, f EquipmentFilter) ([]models.Equipment, error)
	// Update writes e if its version still matches and bumps e.Version.
	Update(ctx context.Context, e *models.Equipment) error
}

type ServiceEventRepo interface {
	Create(ctx context.Context, e models.ServiceEvent) error
	Get(ctx context.Context, id string) (models.ServiceEvent, error)
	Update(ctx context.Context, e *models.ServiceEvent) error
	List(ctx context.Context, f EventFilter) ([]models.ServiceEvent, error)
	// FindOpen returns SCHEDULED/IN_PROGRESS events of kind for the equipment
	// whose scheduled date lies in [from, to].
	FindOpen(ctx context.Context, equipmentID string, kind models.EventKind, from, to time.Time) ([]models.ServiceEvent, error)
	ListOverdue(ctx context.Context, now time.Time) ([]models.ServiceEvent, error)
}

type ContingencyRepo interface {
	Create(ctx context.Context, c models.Contingency) error
	Get(ctx context.Context, id string) (models.Contingency, error)
	Update(ctx context.Context, c *models.Contingency) error
	List(ctx context.Context, f ContingencyFilter) ([]models.Contingency, error)
	ListExpired(ctx context.Context, now time.Time) ([]models.Contingency, error)
	CountOpen(ctx context.Context, equipmentID string) (int, error)
}

type TicketRepo interface {
	Create(ctx context.Context, t models.Ticket) error
	Get(ctx context.Context, id string) (models.Ticket, error)
	Update(ctx context.Context, t *models.Ticket) error
	List(ctx context.Context, f TicketFilter) ([]models.Ticket, error)
	CountOpen(ctx context.Context, equipmentID string) (int, error)
}

// SequenceRepo hands out per-year counters, e.g. ticket numbers.
type SequenceRepo interface {
	Next(ctx context.Context, name string, year int) (int, error)
}

type SparePartRepo interface {
	Create(ctx context.Context, p models.SparePart) error
	Get(ctx context.Context, id string) (models.SparePart, error)
	Update(ctx context.Context, p *models.SparePart) error
	List(ctx context.Context) ([]models.SparePart, error)
}

// StockMovementRepo is append-only: there is no update or delete.
type StockMovementRepo interface {
	Append(ctx context.Context, m models.StockMovement) error
	ListByPart(ctx context.Context, partID string) ([]models.StockMovement, error)
}

type Authorization interface {
	Create(ctx context.Context, u models.User) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id int) (*models.User, error)
	// ListAgents returns active users with one of roles handling category,
	// restricted to department when it is not empty, with their open ticket count.
	ListAgents(ctx context.Context, q AgentQuery) ([]models.AgentLoad, error)
}

type ActivityRepo interface {
	Append(ctx context.Context, a models.Activity) error
	List(ctx context.Context, f ActivityFilter) ([]models.Activity, error)
}

// Transactor runs fn inside one atomic unit of work. Every write made through
// tx commits together or not at all.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx *Repository) error) error
}

type Repository struct {
	Equipment     EquipmentRepo
	ServiceEvents ServiceEventRepo
	Contingencies ContingencyRepo
	Tickets       TicketRepo
	Sequences     SequenceRepo
	Parts         SparePartRepo
	Movements     StockMovementRepo
	Auth          Authorization
	Activity      ActivityRepo

	tx Transactor
}

// NewRepository wires the SQL implementations over db.
func NewRepository(db *sql.DB, dialect Dialect) *Repository {
	r := newSQLRepository(conn{q: db, dialect: dialect})
	r.tx = &sqlTransactor{db: db, dialect: dialect}
	return r
}

// Assemble builds a Repository from arbitrary implementations, used by
// alternative stores such as the in-memory one.
func Assemble(r Repository, tx Transactor) *Repository {
	r.tx = tx
	return &r
}

// WithinTx runs fn in a transaction. Calling it on a Repository that is already
// bound to a transaction joins that transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx *Repository) error) error {
	if r.tx == nil {
		return fmt.Errorf("repository has no transactor")
	}
	return r.tx.WithinTx(ctx, fn)
}

// Scoped returns r bound to an already open transaction: WithinTx on the
// result runs fn directly against it.
func Scoped(r Repository) *Repository {
	p := &r
	p.tx = joinedTx{r: p}
	return p
}

type joinedTx struct{ r *Repository }

func (j joinedTx) WithinTx(ctx context.Context, fn func(ctx context.Context, tx *Repository) error) error {
	return fn(ctx, j.r)
}

func newSQLRepository(c conn) *Repository {
	return &Repository{
		Equipment:     NewEquipmentSQL(c),
		ServiceEvents: NewServiceEventSQL(c),
		Contingencies: NewContingencySQL(c),
		Tickets:       NewTicketSQL(c),
		Sequences:     NewSequenceSQL(c),
		Parts:         NewSparePartSQL(c),
		Movements:     NewStockMovementSQL(c),
		Auth:          NewUserRepository(c),
		Activity:      NewActivitySQL(c),
	}
}

type sqlTransactor struct {
	db      *sql.DB
	dialect Dialect
}

func (t *sqlTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx *Repository) error) (err error) {
	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	scoped := Scoped(*newSQLRepository(conn{q: sqlTx, dialect: t.dialect}))

	if err := fn(ctx, scoped); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
