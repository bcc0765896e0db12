package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-engine/internal/cache"
	"github.com/segyhp/loan-engine/internal/config"
	"github.com/segyhp/loan-engine/internal/logging"
	"github.com/segyhp/loan-engine/internal/metrics"
	"github.com/segyhp/loan-engine/internal/notification"
	"github.com/segyhp/loan-engine/internal/repository"
)

// Policy holds the business defaults applied when a command leaves them out.
type Policy struct {
	PenaltyGraceDays int
	PenaltyDailyRate decimal.Decimal
	MinPrincipal     decimal.Decimal
	MaxPrincipal     decimal.Decimal
	ReminderDays     int
}

func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		PenaltyGraceDays: cfg.Business.PenaltyGraceDays,
		PenaltyDailyRate: cfg.GetPenaltyDailyRate(),
		MinPrincipal:     cfg.GetMinPrincipal(),
		MaxPrincipal:     cfg.GetMaxPrincipal(),
		ReminderDays:     cfg.Scheduler.ReminderDays,
	}
}

// Dependencies wires the collaborators shared by the services.
type Dependencies struct {
	UoW repository.UnitOfWork
	// Repos serves reads outside a transaction.
	Repos    repository.Repos
	Cache    cache.LoanCache
	Notifier notification.Emitter
	Metrics  *metrics.Metrics
	Clock    Clock
	Logger   *slog.Logger
	Policy   Policy
}

type base struct {
	uow       repository.UnitOfWork
	repos     repository.Repos
	cache     cache.LoanCache
	notifier  notification.Emitter
	metrics   *metrics.Metrics
	clock     Clock
	logger    *slog.Logger
	policy    Policy
	validator *Validator
}

func newBase(deps Dependencies) base {
	b := base{
		uow:       deps.UoW,
		repos:     deps.Repos,
		cache:     deps.Cache,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		clock:     deps.Clock,
		logger:    deps.Logger,
		policy:    deps.Policy,
		validator: NewValidator(),
	}
	if b.cache == nil {
		b.cache = cache.Noop{}
	}
	if b.notifier == nil {
		b.notifier = notification.Fanout{}
	}
	if b.metrics == nil {
		b.metrics = metrics.New()
	}
	if b.clock == nil {
		b.clock = NewSystemClock(time.UTC)
	}
	if b.logger == nil {
		b.logger = logging.Discard()
	}
	return b
}

// notify delivers n after the write has committed. Failures are logged and
// reported as false.
func (b *base) notify(ctx context.Context, n notification.Notification) bool {
	n.ID = uuid.New()
	n.CreatedAt = b.clock.Now()

	if err := b.notifier.Notify(ctx, n); err != nil {
		b.metrics.Notifications.WithLabelValues(string(n.Kind), "error").Inc()
		b.logger.WarnContext(ctx, "notification delivery failed",
			"kind", n.Kind,
			"loan_id", n.LoanID,
			"borrower_id", n.BorrowerID,
			"error", err,
		)
		return false
	}
	b.metrics.Notifications.WithLabelValues(string(n.Kind), "ok").Inc()
	return true
}

// invalidate drops the cached snapshot of a loan after a committed write.
func (b *base) invalidate(ctx context.Context, loanID uuid.UUID) {
	if err := b.cache.Invalidate(ctx, loanID); err != nil {
		b.logger.WarnContext(ctx, "loan cache invalidation failed", "loan_id", loanID, "error", err)
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
