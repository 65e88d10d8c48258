package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type RoundRunner interface {
	Trigger(ctx context.Context, standupID uint) (string, error)
	Close(ctx context.Context, standupID uint) error
}

// Scheduler opens each standup's round on its StartCron and closes it on its
// SummaryCron. Schedules are evaluated in UTC.
type Scheduler struct {
	cron        *cron.Cron
	definitions DefinitionSource
	runner      RoundRunner
	logger      *slog.Logger

	mu      sync.Mutex
	entries []cron.EntryID
}

func NewScheduler(definitions DefinitionSource, runner RoundRunner, logger *slog.Logger) *Scheduler {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger{logger})),
	)
	return &Scheduler{cron: c, definitions: definitions, runner: runner, logger: logger}
}

// Reload replaces every registered schedule with the current definitions.
// A standup with an unparsable expression is skipped.
func (s *Scheduler) Reload(ctx context.Context) error {
	defs, err := s.definitions.List(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.entries {
		s.cron.Remove(id)
	}
	s.entries = s.entries[:0]

	for _, def := range defs {
		standupID := def.StandupID
		startID, err := s.cron.AddFunc(def.StartCron, func() { s.open(standupID) })
		if err != nil {
			s.logger.Error("invalid start schedule", "standup_id", standupID, "cron", def.StartCron, "error", err)
			continue
		}
		closeID, err := s.cron.AddFunc(def.SummaryCron, func() { s.close(standupID) })
		if err != nil {
			s.cron.Remove(startID)
			s.logger.Error("invalid summary schedule", "standup_id", standupID, "cron", def.SummaryCron, "error", err)
			continue
		}
		s.entries = append(s.entries, startID, closeID)
	}

	s.logger.Info("standup schedules loaded", "standups", len(defs), "entries", len(s.entries))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and returns a context that is done once running
// jobs have returned.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) open(standupID uint) {
	runID, err := s.runner.Trigger(context.Background(), standupID)
	if err != nil {
		s.logger.Error("scheduled standup failed to start", "standup_id", standupID, "error", err)
		return
	}
	s.logger.Info("scheduled standup started", "standup_id", standupID, "run_id", runID)
}

func (s *Scheduler) close(standupID uint) {
	err := s.runner.Close(context.Background(), standupID)
	switch {
	case errors.Is(err, ErrNoActiveRun):
		s.logger.Debug("nothing to close", "standup_id", standupID)
	case err != nil:
		s.logger.Error("scheduled close-out failed", "standup_id", standupID, "error", err)
	}
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
