package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when a trigger needs a started scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrRunInProgress is returned when a run is requested while another is active
	ErrRunInProgress = errors.New("recurrence run already in progress")

	// ErrInvalidSchedule is returned for cron expressions that do not parse
	ErrInvalidSchedule = errors.New("invalid cron schedule")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
