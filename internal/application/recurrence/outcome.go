package recurrence

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoice"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// OutcomeStatus is the per-invoice result of a run
type OutcomeStatus string

const (
	OutcomeGenerated               OutcomeStatus = "generated"
	OutcomeSkippedNotDue           OutcomeStatus = "skipped_not_due"
	OutcomeSkippedAlreadyGenerated OutcomeStatus = "skipped_already_generated"
	OutcomeSkippedUnknownFrequency OutcomeStatus = "skipped_unknown_frequency"
	OutcomeSkippedMerchantMissing  OutcomeStatus = "skipped_merchant_missing"
	OutcomeFailed                  OutcomeStatus = "failed"
)

// IsSkipped reports whether the invoice was left untouched
func (s OutcomeStatus) IsSkipped() bool {
	switch s {
	case OutcomeSkippedNotDue, OutcomeSkippedAlreadyGenerated,
		OutcomeSkippedUnknownFrequency, OutcomeSkippedMerchantMissing:
		return true
	}
	return false
}

// Stage names the processing step an invoice failed in
type Stage string

const (
	StageAdvance       Stage = "advance"
	StageLoadMerchant  Stage = "load_merchant"
	StageMutate        Stage = "mutate"
	StageMarkGenerated Stage = "mark_generated"
	StagePanic         Stage = "panic"
)

// StepStatus is the result of a best-effort step
type StepStatus string

const (
	StepNotAttempted StepStatus = ""
	StepSucceeded    StepStatus = "succeeded"
	StepSkipped      StepStatus = "skipped"
	StepFailed       StepStatus = "failed"
)

// StepResult records what a best-effort step did
type StepResult struct {
	Status StepStatus `json:"status,omitempty"`
	Detail string     `json:"detail,omitempty"`
	Err    error      `json:"-"`
}

func succeeded(detail string) StepResult { return StepResult{Status: StepSucceeded, Detail: detail} }
func skipped(detail string) StepResult   { return StepResult{Status: StepSkipped, Detail: detail} }
func failed(err error) StepResult {
	return StepResult{Status: StepFailed, Detail: err.Error(), Err: err}
}

// InvoiceOutcome is the record of processing one candidate
type InvoiceOutcome struct {
	InvoiceID     int64             `json:"invoice_id"`
	MerchantID    int64             `json:"merchant_id"`
	Frequency     invoice.Frequency `json:"frequency"`
	Status        OutcomeStatus     `json:"status"`
	NextIssueDate *time.Time        `json:"next_issue_date,omitempty"`
	Payment       StepResult        `json:"payment"`
	Notification  StepResult        `json:"notification"`
	Stage         Stage             `json:"stage,omitempty"`
	Err           error             `json:"-"`
	Error         string            `json:"error,omitempty"`
}

func (o *InvoiceOutcome) fail(stage Stage, err error) {
	o.Status = OutcomeFailed
	o.Stage = stage
	o.Err = err
	o.Error = err.Error()
}

// MarshalLogObject renders the outcome as one structured log entry
func (o *InvoiceOutcome) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("invoice_id", o.InvoiceID)
	enc.AddInt64("merchant_id", o.MerchantID)
	enc.AddString("frequency", string(o.Frequency))
	enc.AddString("status", string(o.Status))
	if o.NextIssueDate != nil {
		enc.AddString("next_issue_date", o.NextIssueDate.Format(time.DateOnly))
	}
	if o.Payment.Status != StepNotAttempted {
		enc.AddString("payment", string(o.Payment.Status))
	}
	if o.Notification.Status != StepNotAttempted {
		enc.AddString("notification", string(o.Notification.Status))
	}
	if o.Stage != "" {
		enc.AddString("stage", string(o.Stage))
	}
	return nil
}

func (o *InvoiceOutcome) logFields() []zap.Field {
	fields := []zap.Field{zap.Inline(o)}
	if o.Err != nil {
		fields = append(fields, zap.Error(o.Err))
	}
	if o.Payment.Err != nil {
		fields = append(fields, zap.NamedError("payment_error", o.Payment.Err))
	}
	if o.Notification.Err != nil {
		fields = append(fields, zap.NamedError("notification_error", o.Notification.Err))
	}
	return fields
}

// RunCounts aggregates the outcomes of a run
type RunCounts struct {
	Candidates          int `json:"candidates"`
	Generated           int `json:"generated"`
	Skipped             int `json:"skipped"`
	Failed              int `json:"failed"`
	PaymentsCreated     int `json:"payments_created"`
	PaymentsSkipped     int `json:"payments_skipped"`
	PaymentsFailed      int `json:"payments_failed"`
	NotificationsSent   int `json:"notifications_sent"`
	NotificationsFailed int `json:"notifications_failed"`
}

// RunReport summarizes one execution of the engine
type RunReport struct {
	RunID      uuid.UUID        `json:"run_id"`
	Today      time.Time        `json:"today"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Candidates int              `json:"candidates"`
	Outcomes   []InvoiceOutcome `json:"outcomes"`
}

// Counts tallies outcomes and step results
func (r *RunReport) Counts() RunCounts {
	c := RunCounts{Candidates: r.Candidates}
	for _, o := range r.Outcomes {
		switch {
		case o.Status == OutcomeGenerated:
			c.Generated++
		case o.Status == OutcomeFailed:
			c.Failed++
		case o.Status.IsSkipped():
			c.Skipped++
		}
		switch o.Payment.Status {
		case StepSucceeded:
			c.PaymentsCreated++
		case StepSkipped:
			c.PaymentsSkipped++
		case StepFailed:
			c.PaymentsFailed++
		}
		switch o.Notification.Status {
		case StepSucceeded:
			c.NotificationsSent++
		case StepFailed:
			c.NotificationsFailed++
		}
	}
	return c
}

// Outcome returns the outcome for an invoice, if it was a candidate
func (r *RunReport) Outcome(invoiceID int64) (InvoiceOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.InvoiceID == invoiceID {
			return o, true
		}
	}
	return InvoiceOutcome{}, false
}

// Duration returns the wall time of the run
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
