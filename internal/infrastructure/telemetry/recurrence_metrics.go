package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RecurrenceMetrics records counters for recurring invoice runs
type RecurrenceMetrics struct {
	runs          metric.Int64Counter
	runDuration   metric.Float64Histogram
	outcomes      metric.Int64Counter
	payments      metric.Int64Counter
	notifications metric.Int64Counter
}

// NewRecurrenceMetrics registers the recurrence instruments on meter
func NewRecurrenceMetrics(meter metric.Meter) (*RecurrenceMetrics, error) {
	m := &RecurrenceMetrics{}
	var err error

	if m.runs, err = meter.Int64Counter("recurrence.runs",
		metric.WithDescription("Recurring invoice runs by result"),
		metric.WithUnit("{run}")); err != nil {
		return nil, fmt.Errorf("create runs counter: %w", err)
	}
	if m.runDuration, err = meter.Float64Histogram("recurrence.run.duration",
		metric.WithDescription("Wall time of a recurring invoice run"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create run duration histogram: %w", err)
	}
	if m.outcomes, err = meter.Int64Counter("recurrence.invoices",
		metric.WithDescription("Processed recurring invoices by outcome"),
		metric.WithUnit("{invoice}")); err != nil {
		return nil, fmt.Errorf("create outcomes counter: %w", err)
	}
	if m.payments, err = meter.Int64Counter("recurrence.payment_sessions",
		metric.WithDescription("Checkout session requests by result"),
		metric.WithUnit("{session}")); err != nil {
		return nil, fmt.Errorf("create payments counter: %w", err)
	}
	if m.notifications, err = meter.Int64Counter("recurrence.notifications",
		metric.WithDescription("Invoice emails by result"),
		metric.WithUnit("{email}")); err != nil {
		return nil, fmt.Errorf("create notifications counter: %w", err)
	}
	return m, nil
}

// RecordRun counts a finished run
func (m *RecurrenceMetrics) RecordRun(ctx context.Context, d time.Duration, failed bool) {
	result := "ok"
	if failed {
		result = "failed"
	}
	attrs := metric.WithAttributes(attribute.String("result", result))
	m.runs.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordInvoice counts one invoice outcome and its step results
func (m *RecurrenceMetrics) RecordInvoice(ctx context.Context, outcome, payment, notification string) {
	m.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if payment != "" {
		m.payments.Add(ctx, 1, metric.WithAttributes(attribute.String("result", payment)))
	}
	if notification != "" {
		m.notifications.Add(ctx, 1, metric.WithAttributes(attribute.String("result", notification)))
	}
}
