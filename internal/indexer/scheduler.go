package indexer

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/logger"
)

// cronParser accepts standard 5-field expressions (minute hour day month weekday) and
// descriptors such as @hourly.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler runs a job on a cron schedule. A panicking job is recovered and logged.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	logger logger.Logger
}

// NewScheduler parses spec and registers job.
func NewScheduler(spec string, job func(), log logger.Logger) (*Scheduler, error) {
	if _, err := cronParser.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	c := cron.New(cron.WithParser(cronParser), cron.WithChain(cron.Recover(cronLogger{log})))
	if _, err := c.AddFunc(spec, job); err != nil {
		return nil, fmt.Errorf("schedule refresh: %w", err)
	}
	return &Scheduler{cron: c, spec: spec, logger: log}, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Refresh scheduler started", logger.String("schedule", s.spec))
}

// Stop stops the scheduler and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Refresh scheduler stopped")
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct{ l logger.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, logger.Any("details", keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, logger.Error(err), logger.Any("details", keysAndValues))
}
