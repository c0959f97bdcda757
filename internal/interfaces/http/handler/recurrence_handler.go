package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/application/recurrence"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/scheduler"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// RecurrenceScheduler is the scheduler surface exposed over HTTP
type RecurrenceScheduler interface {
	IsRunning() bool
	Entries() []scheduler.ScheduleEntry
	LastRun() *scheduler.RunStatus
	TriggerNow(ctx context.Context) error
}

// RunReportSource exposes the engine's billing date and latest report
type RunReportSource interface {
	Today() time.Time
	LastReport() *recurrence.RunReport
}

// RecurrenceHandler exposes the recurring invoice job
type RecurrenceHandler struct {
	BaseHandler
	scheduler            RecurrenceScheduler
	reports              RunReportSource
	manualTriggerEnabled bool
}

// NewRecurrenceHandler creates a new RecurrenceHandler
func NewRecurrenceHandler(s RecurrenceScheduler, reports RunReportSource, manualTriggerEnabled bool) *RecurrenceHandler {
	return &RecurrenceHandler{
		scheduler:            s,
		reports:              reports,
		manualTriggerEnabled: manualTriggerEnabled,
	}
}

// RunSummary describes one finished run
type RunSummary struct {
	RunID      string               `json:"run_id"`
	Today      string               `json:"today"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Counts     recurrence.RunCounts `json:"counts"`
}

// RecurrenceStatusResponse is returned by the status endpoint
type RecurrenceStatusResponse struct {
	SchedulerRunning bool                      `json:"scheduler_running"`
	Today            string                    `json:"today"`
	Schedules        []scheduler.ScheduleEntry `json:"schedules"`
	LastRun          *scheduler.RunStatus      `json:"last_run,omitempty"`
	LastReport       *RunSummary               `json:"last_report,omitempty"`
	ManualTrigger    bool                      `json:"manual_trigger_enabled"`
}

func summarize(report *recurrence.RunReport) *RunSummary {
	if report == nil {
		return nil
	}
	return &RunSummary{
		RunID:      report.RunID.String(),
		Today:      report.Today.Format(time.DateOnly),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Counts:     report.Counts(),
	}
}

// Status lists the next fire times and the most recent run
func (h *RecurrenceHandler) Status(c *gin.Context) {
	h.Success(c, RecurrenceStatusResponse{
		SchedulerRunning: h.scheduler.IsRunning(),
		Today:            h.reports.Today().Format(time.DateOnly),
		Schedules:        h.scheduler.Entries(),
		LastRun:          h.scheduler.LastRun(),
		LastReport:       summarize(h.reports.LastReport()),
		ManualTrigger:    h.manualTriggerEnabled,
	})
}

// Run triggers a run for today and answers with its counts. The run is not
// tied to the request lifetime, so a client disconnect does not abort it.
func (h *RecurrenceHandler) Run(c *gin.Context) {
	if !h.manualTriggerEnabled {
		h.Forbidden(c, "manual recurrence trigger is disabled")
		return
	}

	log := logger.FromContext(c.Request.Context())
	err := h.scheduler.TriggerNow(context.WithoutCancel(c.Request.Context()))
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		h.ErrorWithCode(c, dto.ErrCodeRunInProgress, "a recurrence run is already in progress")
		return
	case err != nil:
		log.Error("Manual recurrence run failed", zap.Error(err))
		h.ErrorWithCode(c, dto.ErrCodeRunFailed, "recurrence run failed")
		return
	}

	summary := summarize(h.reports.LastReport())
	if summary == nil {
		h.InternalError(c, "run finished without a report")
		return
	}
	h.Success(c, summary)
}
