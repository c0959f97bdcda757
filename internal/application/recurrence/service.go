package recurrence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoice"
	"github.com/invoicing/backend/internal/domain/merchant"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ServiceConfig contains the collaborators of Service
type ServiceConfig struct {
	Invoices  invoice.Repository
	Merchants merchant.Repository
	// Payments may be nil, in which case no payment sessions are requested
	Payments *PaymentSessionRequester
	// Notifier may be nil, in which case no emails are sent
	Notifier *Notifier
	Clock    Clock
	// Location is the billing time zone used by RunNow to derive today
	Location *time.Location
	Metrics  *telemetry.RecurrenceMetrics
	Logger   *zap.Logger
}

// Service rolls recurring invoices into their next billing period
type Service struct {
	invoices  invoice.Repository
	merchants merchant.Repository
	payments  *PaymentSessionRequester
	notifier  *Notifier
	clock     Clock
	location  *time.Location
	metrics   *telemetry.RecurrenceMetrics
	logger    *zap.Logger

	mu         sync.RWMutex
	lastReport *RunReport
}

// NewService creates a new Service
func NewService(cfg ServiceConfig) *Service {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		invoices:  cfg.Invoices,
		merchants: cfg.Merchants,
		payments:  cfg.Payments,
		notifier:  cfg.Notifier,
		clock:     cfg.Clock,
		location:  cfg.Location,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Today returns the current billing date
func (s *Service) Today() time.Time {
	return BillingDate(s.clock.Now(), s.location)
}

// LastReport returns the report of the most recent run, or nil before the first run
func (s *Service) LastReport() *RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport
}

// RunNow runs the engine for the current billing date.
func (s *Service) RunNow(ctx context.Context) (*RunReport, error) {
	return s.Run(ctx, s.Today())
}

// Run selects the recurring invoices that may be due on today and processes
// them one at a time. Per-invoice problems are reported in the outcomes; an
// error is returned only when selection fails or ctx is canceled mid-run.
func (s *Service) Run(ctx context.Context, today time.Time) (*RunReport, error) {
	today = invoice.DateOf(today)
	report := &RunReport{
		RunID:     uuid.New(),
		Today:     today,
		StartedAt: s.clock.Now(),
	}

	ctx = logger.WithRunID(ctx, report.RunID.String())
	ctx, span := telemetry.StartSpan(ctx, "recurrence.run",
		attribute.String("recurrence.run_id", report.RunID.String()),
		attribute.String("recurrence.today", today.Format(time.DateOnly)))
	defer span.End()

	log := logger.Enrich(ctx, s.logger)
	log.Info("Recurring invoice run started", zap.String("today", today.Format(time.DateOnly)))

	candidates, err := s.invoices.FindDueRecurring(ctx, today)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSelectionFailed, err)
		report.FinishedAt = s.clock.Now()
		telemetry.RecordError(span, err)
		s.recordRun(ctx, report, true)
		log.Error("Recurring invoice run aborted", zap.Error(err))
		return report, err
	}

	report.Candidates = len(candidates)
	report.Outcomes = make([]InvoiceOutcome, 0, len(candidates))
	span.SetAttributes(attribute.Int("recurrence.candidates", len(candidates)))

	var runErr error
	for _, inv := range candidates {
		if err := ctx.Err(); err != nil {
			runErr = err
			log.Warn("Recurring invoice run interrupted",
				zap.Int("processed", len(report.Outcomes)),
				zap.Int("remaining", len(candidates)-len(report.Outcomes)),
				zap.Error(err))
			break
		}

		outcome := s.processSafely(ctx, log, inv, today)
		report.Outcomes = append(report.Outcomes, outcome)
		s.logOutcome(log, &outcome)
		if s.metrics != nil {
			s.metrics.RecordInvoice(ctx, string(outcome.Status), string(outcome.Payment.Status), string(outcome.Notification.Status))
		}
	}

	report.FinishedAt = s.clock.Now()
	s.recordRun(ctx, report, runErr != nil)
	if runErr != nil {
		telemetry.RecordError(span, runErr)
	} else {
		telemetry.SetOK(span)
	}

	counts := report.Counts()
	log.Info("Recurring invoice run finished",
		zap.Int("candidates", counts.Candidates),
		zap.Int("generated", counts.Generated),
		zap.Int("skipped", counts.Skipped),
		zap.Int("failed", counts.Failed),
		zap.Int("payments_created", counts.PaymentsCreated),
		zap.Int("notifications_sent", counts.NotificationsSent),
		zap.Duration("duration", report.Duration()))

	return report, runErr
}

func (s *Service) processSafely(ctx context.Context, log *zap.Logger, inv *invoice.Invoice, today time.Time) (outcome InvoiceOutcome) {
	outcome = InvoiceOutcome{
		InvoiceID:  inv.ID,
		MerchantID: inv.MerchantID,
		Frequency:  inv.Frequency,
	}

	defer func() {
		if r := recover(); r != nil {
			outcome.fail(StagePanic, fmt.Errorf("panic while processing invoice %d: %v", inv.ID, r))
			log.Error("Recovered from panic while processing invoice",
				zap.Int64("invoice_id", inv.ID),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	s.process(ctx, inv, today, &outcome)
	return outcome
}

// process advances one invoice. The period transition is committed before
// the payment and notification steps; last_generated_on is committed only
// after both have been attempted.
func (s *Service) process(ctx context.Context, inv *invoice.Invoice, today time.Time, outcome *InvoiceOutcome) {
	ctx, span := telemetry.StartSpan(ctx, "recurrence.invoice",
		attribute.Int64("invoice.id", inv.ID),
		attribute.Int64("merchant.id", inv.MerchantID),
		attribute.String("invoice.frequency", string(inv.Frequency)))
	defer func() {
		span.SetAttributes(attribute.String("recurrence.outcome", string(outcome.Status)))
		telemetry.RecordError(span, outcome.Err)
		span.End()
	}()

	next, decision, err := invoice.AdvanceInvoice(inv, today)
	if err != nil {
		if errors.Is(err, invoice.ErrUnknownFrequency) {
			outcome.Status = OutcomeSkippedUnknownFrequency
			return
		}
		outcome.fail(StageAdvance, err)
		return
	}
	outcome.NextIssueDate = &next

	switch decision {
	case invoice.DecisionNotYetDue:
		outcome.Status = OutcomeSkippedNotDue
		return
	case invoice.DecisionAlreadyGenerated:
		outcome.Status = OutcomeSkippedAlreadyGenerated
		return
	}

	m, err := s.merchants.FindByID(ctx, inv.MerchantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			outcome.Status = OutcomeSkippedMerchantMissing
			return
		}
		outcome.fail(StageLoadMerchant, fmt.Errorf("load merchant %d: %w", inv.MerchantID, err))
		return
	}

	inv.ApplyRecurrence(next)
	if err := s.invoices.ApplyRecurrence(ctx, inv); err != nil {
		outcome.fail(StageMutate, err)
		return
	}

	if s.payments != nil {
		outcome.Payment = s.payments.Request(ctx, inv, m)
	} else {
		outcome.Payment = skipped("payment provider not configured")
	}

	if s.notifier != nil {
		outcome.Notification = s.notifier.Notify(ctx, inv, m)
	} else {
		outcome.Notification = skipped("notifier not configured")
	}

	if err := s.invoices.MarkGenerated(ctx, inv.ID, today); err != nil {
		outcome.fail(StageMarkGenerated, err)
		return
	}
	if err := inv.MarkGenerated(today); err != nil {
		outcome.fail(StageMarkGenerated, err)
		return
	}

	outcome.Status = OutcomeGenerated
}

func (s *Service) logOutcome(log *zap.Logger, outcome *InvoiceOutcome) {
	fields := outcome.logFields()
	switch outcome.Status {
	case OutcomeFailed:
		log.Error("Recurring invoice failed", fields...)
	case OutcomeSkippedUnknownFrequency:
		log.Warn("Recurring invoice has an unknown frequency, skipped", fields...)
	case OutcomeSkippedMerchantMissing:
		log.Warn("Recurring invoice merchant not found, skipped", fields...)
	case OutcomeGenerated:
		log.Info("Recurring invoice generated", fields...)
	default:
		log.Debug("Recurring invoice skipped", fields...)
	}
}

func (s *Service) recordRun(ctx context.Context, report *RunReport, aborted bool) {
	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()

	if s.metrics == nil {
		return
	}
	s.metrics.RecordRun(ctx, report.Duration(), aborted)
}
