package service

import (
	"context"
	"errors"
	"time"

	"equipment_service/internal/cache"
	"equipment_service/internal/metrics"
	"equipment_service/internal/models"
	"equipment_service/internal/notify"
	"equipment_service/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Authorization interface {
	SignUp(ctx context.Context, in SignUpInput) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
	CallerAllowed(ctx context.Context, actorID int, action Action) (bool, error)
}

// Equipment exposes the registry and the derived overview.
type Equipment interface {
	Register(ctx context.Context, in RegisterEquipmentInput) (models.Equipment, error)
	Get(ctx context.Context, id string) (models.Equipment, error)
	List(ctx context.Context, f repository.EquipmentFilter) ([]models.Equipment, error)
	Decommission(ctx context.Context, id, reason string) (models.Equipment, error)
	Overview(ctx context.Context, id string) (models.EquipmentOverview, error)
}

// ServiceEvents schedules and executes maintenance and calibration.
type ServiceEvents interface {
	Schedule(ctx context.Context, in ScheduleInput) (models.ServiceEvent, error)
	Start(ctx context.Context, eventID string) (models.ServiceEvent, error)
	Complete(ctx context.Context, eventID string, out CompletionOutcome) (models.ServiceEvent, error)
	Cancel(ctx context.Context, eventID, reason string) (models.ServiceEvent, error)
	Get(ctx context.Context, id string) (models.ServiceEvent, error)
	List(ctx context.Context, f repository.EventFilter) ([]models.ServiceEvent, error)
	ListOverdue(ctx context.Context) ([]models.ServiceEvent, error)
}

type Contingencies interface {
	Report(ctx context.Context, in ReportInput) (models.Contingency, error)
	Escalate(ctx context.Context, id, reason string) (models.Contingency, error)
	Resolve(ctx context.Context, id string, in ResolveInput) (models.Contingency, error)
	Get(ctx context.Context, id string) (models.Contingency, error)
	List(ctx context.Context, f repository.ContingencyFilter) ([]models.Contingency, error)
	ListExpired(ctx context.Context) ([]models.Contingency, error)
}

type Tickets interface {
	Create(ctx context.Context, in CreateTicketInput) (models.Ticket, error)
	AutoAssign(ctx context.Context, id string) (models.Ticket, error)
	Assign(ctx context.Context, id string, agentID int) (models.Ticket, error)
	EscalateIfOverdue(ctx context.Context, id string) (models.Ticket, error)
	Resolve(ctx context.Context, id, solution string) (models.Ticket, error)
	Close(ctx context.Context, id string, in CloseTicketInput) (models.Ticket, error)
	Get(ctx context.Context, id string) (models.Ticket, error)
	List(ctx context.Context, f repository.TicketFilter) ([]models.Ticket, error)
}

// SpareParts is the stock ledger.
type SpareParts interface {
	Register(ctx context.Context, in RegisterPartInput) (models.SparePart, error)
	Receive(ctx context.Context, partID string, qty int, unitCost decimal.Decimal, reference string) (models.SparePart, error)
	Issue(ctx context.Context, partID string, qty int, reference string) (models.SparePart, error)
	Reconcile(ctx context.Context, partID string, physicalCount int, reference string) (models.SparePart, error)
	Get(ctx context.Context, id string) (models.SparePart, error)
	List(ctx context.Context) ([]models.SparePart, error)
	Movements(ctx context.Context, partID string) ([]models.StockMovement, error)
}

// ActivityLog exposes the append-only audit trail with filtering access.
type ActivityLog interface {
	List(ctx context.Context, f ActivityFilter) ([]models.Activity, error)
}

// Sweeper runs the overdue sweep once or on a ticker.
// Stop the loop via context cancellation in main() for graceful shutdown.
type Sweeper interface {
	RunOverdueSweep(ctx context.Context) (SweepReport, error)
	Run(ctx context.Context, tick time.Duration)
}

// Service aggregates all sub-services.
type Service struct {
	Authorization
	Equipment     Equipment
	Events        ServiceEvents
	Contingencies Contingencies
	Tickets       Tickets
	Parts         SpareParts
	Activity      ActivityLog
	Sweep         Sweeper
}

// deps is shared by every engine.
type deps struct {
	repo     *repository.Repository
	notifier notify.Notifier
	cache    cache.Cache
	metrics  *metrics.Collector
	log      *zap.SugaredLogger
	now      func() time.Time

	signingKey string
	tokenTTL   time.Duration
}

type Option func(*deps)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

func WithNotifier(n notify.Notifier) Option {
	return func(d *deps) { d.notifier = n }
}

func WithCache(c cache.Cache) Option {
	return func(d *deps) { d.cache = c }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(d *deps) { d.metrics = m }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(d *deps) { d.log = l }
}

// WithTokenConfig sets the JWT signing key and lifetime.
func WithTokenConfig(signingKey string, ttl time.Duration) Option {
	return func(d *deps) {
		d.signingKey = signingKey
		d.tokenTTL = ttl
	}
}

const (
	defaultSigningKey = "change-me"
	defaultTokenTTL   = time.Hour
)

// NewService wires the repository layer into concrete services.
func NewService(repos *repository.Repository, opts ...Option) *Service {
	d := &deps{
		repo:       repos,
		notifier:   notify.Nop{},
		cache:      cache.Nop{},
		log:        zap.NewNop().Sugar(),
		now:        time.Now,
		signingKey: defaultSigningKey,
		tokenTTL:   defaultTokenTTL,
	}
	for _, opt := range opts {
		opt(d)
	}

	parts := &SparePartsService{d: d}
	events := &ServiceEventService{d: d, parts: parts}
	contingencies := &ContingencyService{d: d, events: events}
	tickets := &TicketService{d: d}

	return &Service{
		Authorization: NewAuthService(repos.Auth, d.signingKey, d.tokenTTL),
		Equipment:     &EquipmentService{d: d},
		Events:        events,
		Contingencies: contingencies,
		Tickets:       tickets,
		Parts:         parts,
		Activity:      NewActivityService(repos.Activity),
		Sweep:         &SweepService{d: d, events: events, contingencies: contingencies, tickets: tickets},
	}
}

func (d *deps) clock() time.Time { return d.now().UTC() }

// outbox collects side effects that must only happen after commit.
type outbox struct {
	notes   []notify.Notification
	keys    []string
	metrics []func(*metrics.Collector)
}

func (o *outbox) notify(n notify.Notification) { o.notes = append(o.notes, n) }

func (o *outbox) invalidate(keys ...string) { o.keys = append(o.keys, keys...) }

func (o *outbox) metric(f func(*metrics.Collector)) { o.metrics = append(o.metrics, f) }

// inTx runs fn as one atomic unit and dispatches the outbox once it commits.
func (d *deps) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx *repository.Repository, ob *outbox) error) error {
	ob := &outbox{}
	err := d.repo.WithinTx(ctx, func(ctx context.Context, tx *repository.Repository) error {
		return fn(ctx, tx, ob)
	})
	if err = storeErr(op, err); err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			d.metrics.Conflict()
		}
		return err
	}
	d.flush(context.WithoutCancel(ctx), ob)
	return nil
}

// read runs a read-only fn in a transaction for a consistent view.
func (d *deps) read(ctx context.Context, op string, fn func(ctx context.Context, tx *repository.Repository) error) error {
	return storeErr(op, d.repo.WithinTx(ctx, fn))
}

func (d *deps) flush(ctx context.Context, ob *outbox) {
	for _, f := range ob.metrics {
		f(d.metrics)
	}
	if len(ob.keys) > 0 {
		if err := d.cache.Invalidate(ctx, ob.keys...); err != nil {
			d.log.Warnw("cache invalidation failed", "keys", ob.keys, "err", err)
		}
	}
	for _, n := range ob.notes {
		if err := d.notifier.Notify(ctx, n); err != nil {
			d.log.Errorw("notification failed", "type", n.Type, "entity_id", n.EntityID, "err", err)
		}
	}
}

// record appends an activity entry inside tx.
func (d *deps) record(ctx context.Context, tx *repository.Repository, entity models.EntityKind, id, typ, msg string, meta map[string]any) error {
	a := models.Activity{
		OccurredAt: d.clock(),
		Entity:     entity,
		EntityID:   id,
		Type:       typ,
		Message:    msg,
	}
	if meta != nil {
		a.Metadata = meta
	}
	return tx.Activity.Append(ctx, a)
}
