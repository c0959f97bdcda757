package scheduler

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// zapCronLogger adapts zap to the cron.Logger interface. Cron's routine
// bookkeeping ("wake", "run", "schedule") goes to debug.
type zapCronLogger struct {
	logger *zap.SugaredLogger
}

func newCronLogger(logger *zap.Logger) cron.Logger {
	return zapCronLogger{logger: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l zapCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw("cron: "+msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
