package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Gurkunwar/standupbot/internal/bot/standup"
)

var (
	ErrRunActive   = errors.New("standup already has an active run")
	ErrAlreadyRan  = errors.New("standup already ran today")
	ErrNoActiveRun = errors.New("standup has no active run")
)

type DefinitionSource interface {
	Get(ctx context.Context, standupID uint) (standup.Definition, error)
	List(ctx context.Context) ([]standup.Definition, error)
}

// CheckpointStore persists runs and their member snapshots across restarts.
type CheckpointStore interface {
	standup.Checkpointer
	SaveRun(ctx context.Context, run standup.Run) error
	Run(ctx context.Context, runID string) (standup.Run, error)
	Load(ctx context.Context, run standup.Run) (*standup.Snapshot, error)
	ActiveRuns(ctx context.Context) ([]string, error)
	Deactivate(ctx context.Context, runID string) error
	Delete(ctx context.Context, runID string) error
}

// StandupService owns every orchestrator in the process and is the single
// entry point for triggers, interactions and close-outs.
type StandupService struct {
	definitions DefinitionSource
	checkpoints CheckpointStore
	gateway     standup.MessagingGateway
	summarizer  standup.Summarizer
	logger      *slog.Logger
	opts        []standup.Option
	now         func() time.Time

	mu      sync.Mutex
	runs    map[string]*standup.Orchestrator
	current map[uint]string
}

func NewStandupService(definitions DefinitionSource, checkpoints CheckpointStore, gateway standup.MessagingGateway,
	summarizer standup.Summarizer, logger *slog.Logger, opts ...standup.Option) *StandupService {

	return &StandupService{
		definitions: definitions,
		checkpoints: checkpoints,
		gateway:     gateway,
		summarizer:  summarizer,
		logger:      logger,
		opts:        opts,
		now:         time.Now,
		runs:        make(map[string]*standup.Orchestrator),
		current:     make(map[uint]string),
	}
}

// Trigger starts today's run of a standup and blocks until every member has
// been sent their opening prompt. A checkpoint left by an earlier process for
// the same run is picked up.
func (s *StandupService) Trigger(ctx context.Context, standupID uint) (string, error) {
	def, err := s.definitions.Get(ctx, standupID)
	if err != nil {
		return "", err
	}
	run := standup.NewRun(def, s.now())

	prior, err := s.checkpoints.Load(ctx, run)
	if err != nil {
		s.logger.Warn("ignoring unreadable checkpoint", "run_id", run.ID, "error", err)
		prior = nil
	}

	o, err := s.register(run)
	if err != nil {
		return "", err
	}
	return run.ID, s.start(ctx, o, prior)
}

// Resume restarts every run that was still active when the process stopped.
func (s *StandupService) Resume(ctx context.Context) error {
	ids, err := s.checkpoints.ActiveRuns(ctx)
	if err != nil {
		return err
	}

	for _, runID := range ids {
		run, err := s.checkpoints.Run(ctx, runID)
		if err != nil {
			s.logger.Error("cannot resume run", "run_id", runID, "error", err)
			if err := s.checkpoints.Deactivate(ctx, runID); err != nil {
				s.logger.Warn("cannot deactivate run", "run_id", runID, "error", err)
			}
			continue
		}

		o, err := s.register(run)
		if err != nil {
			s.logger.Info("run already registered, not resuming", "run_id", runID, "error", err)
			continue
		}

		prior, err := s.checkpoints.Load(ctx, run)
		if err != nil {
			o.Fail(fmt.Errorf("load checkpoint: %w", err))
			continue
		}

		s.logger.Info("resuming standup run", "run_id", runID, "checkpointed_members", memberCount(prior))
		if err := s.start(ctx, o, prior); err != nil {
			s.logger.Error("resumed run failed", "run_id", runID, "error", err)
		}
	}
	return nil
}

func (s *StandupService) register(run standup.Run) (*standup.Orchestrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	standupID := run.Definition.StandupID
	if id, ok := s.current[standupID]; ok {
		prev := s.runs[id]
		switch {
		case !prev.State().Terminal():
			return nil, fmt.Errorf("%w: %s", ErrRunActive, id)
		case id == run.ID && prev.State() == standup.RunDone:
			return nil, fmt.Errorf("%w: %s", ErrAlreadyRan, id)
		}
		delete(s.runs, id)
	}

	opts := append([]standup.Option{
		standup.WithLogger(s.logger),
		standup.WithCheckpointer(s.checkpoints),
	}, s.opts...)
	o := standup.NewOrchestrator(run, s.gateway, s.summarizer, opts...)

	s.runs[run.ID] = o
	s.current[standupID] = run.ID
	go s.watch(o)
	return o, nil
}

func (s *StandupService) start(ctx context.Context, o *standup.Orchestrator, prior *standup.Snapshot) error {
	ctx = context.WithoutCancel(ctx)
	if err := s.checkpoints.SaveRun(ctx, o.Run()); err != nil {
		s.logger.Warn("cannot persist run", "run_id", o.Run().ID, "error", err)
	}
	return o.Begin(ctx, prior)
}

// watch cleans up a run's checkpoint once it ends. It holds the registry lock
// so a replacement run for the same day cannot be deactivated by its predecessor.
func (s *StandupService) watch(o *standup.Orchestrator) {
	<-o.Done()

	s.mu.Lock()
	defer s.mu.Unlock()

	runID := o.Run().ID
	if s.runs[runID] != o {
		return
	}

	ctx := context.Background()
	switch o.State() {
	case standup.RunDone:
		s.logger.Info("standup run finished", "run_id", runID)
		if err := s.checkpoints.Delete(ctx, runID); err != nil {
			s.logger.Warn("cannot delete checkpoint", "run_id", runID, "error", err)
		}
	case standup.RunFailed:
		if err := s.checkpoints.Deactivate(ctx, runID); err != nil {
			s.logger.Warn("cannot deactivate run", "run_id", runID, "error", err)
		}
	}
}

func (s *StandupService) HandleInteraction(ctx context.Context, ev standup.Interaction) standup.Ack {
	o, ok := s.lookup(ev.RunID)
	if !ok {
		return standup.Ack{Ignored: fmt.Errorf("%w: %s", standup.ErrUnknownRun, ev.RunID)}
	}
	return o.HandleInteraction(ctx, ev)
}

// Close ends the collection window of a standup's current run.
func (s *StandupService) Close(ctx context.Context, standupID uint) error {
	o, ok := s.currentRun(standupID)
	if !ok {
		return ErrNoActiveRun
	}
	if err := o.CloseOut(ctx); err != nil {
		if errors.Is(err, standup.ErrRunNotActive) {
			return fmt.Errorf("%w: %w", ErrNoActiveRun, err)
		}
		return err
	}
	return nil
}

// Abort stops a run without summarizing it.
func (s *StandupService) Abort(runID string) error {
	o, ok := s.lookup(runID)
	if !ok {
		return fmt.Errorf("%w: %s", standup.ErrUnknownRun, runID)
	}
	o.Abort()
	return nil
}

func (s *StandupService) Status(runID string) (standup.Status, bool) {
	o, ok := s.lookup(runID)
	if !ok {
		return standup.Status{}, false
	}
	return o.Status(), true
}

func (s *StandupService) StatusFor(standupID uint) (standup.Status, bool) {
	o, ok := s.currentRun(standupID)
	if !ok {
		return standup.Status{}, false
	}
	return o.Status(), true
}

// Prompt returns the text of a run's idx-th question, for the answer modal.
func (s *StandupService) Prompt(runID string, idx int) (string, bool) {
	o, ok := s.lookup(runID)
	if !ok {
		return "", false
	}
	prompts := o.Run().Definition.Prompts
	if idx < 0 || idx >= len(prompts) {
		return "", false
	}
	return prompts[idx], true
}

func (s *StandupService) lookup(runID string) (*standup.Orchestrator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.runs[runID]
	return o, ok
}

func (s *StandupService) currentRun(standupID uint) (*standup.Orchestrator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.current[standupID]
	if !ok {
		return nil, false
	}
	return s.runs[id], true
}

func memberCount(snap *standup.Snapshot) int {
	if snap == nil {
		return 0
	}
	return len(snap.Members)
}
