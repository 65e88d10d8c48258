// Package standup drives one standup run: a private conversation with every
// member, tracked as a per-member state machine, recoverable from a snapshot
// and advanced by button clicks routed back through the message they came from.
package standup

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Summarizer receives the aggregated outcome once every member has resolved.
type Summarizer interface {
	Summarize(ctx context.Context, result Result) error
}

// Checkpointer persists a member's conversation after each transition. It is
// called while the member is serialized, so saves for one member arrive in order.
type Checkpointer interface {
	Save(ctx context.Context, runID string, member MemberSnapshot) error
}

type ResultStatus string

const (
	ResultOptedOut  ResultStatus = "opted_out"
	ResultCompleted ResultStatus = "completed"
	ResultErrored   ResultStatus = "errored"
)

type MemberResult struct {
	MemberID string       `json:"member_id"`
	Status   ResultStatus `json:"status"`
	Reason   string       `json:"reason,omitempty"`
	Answers  []Answer     `json:"answers,omitempty"`
}

// Answered is false for both opted-out and errored members; reports render
// them the same way.
func (r MemberResult) Answered() bool {
	return r.Status == ResultCompleted
}

type Result struct {
	Run     Run            `json:"run"`
	Members []MemberResult `json:"members"`
}

type MemberStatus struct {
	MemberID string       `json:"member_id"`
	State    MemberState  `json:"state"`
	Reason   OptOutReason `json:"reason,omitempty"`
	Answered int          `json:"answered"`
}

type Status struct {
	RunID   string         `json:"run_id"`
	State   RunState       `json:"state"`
	Error   string         `json:"error,omitempty"`
	Members []MemberStatus `json:"members"`
}

// Ack is what HandleInteraction reports back. The caller acknowledges the
// platform event either way; Ignored explains why nothing changed.
type Ack struct {
	Applied bool
	Ignored error
}

type Orchestrator struct {
	run         Run
	gateway     MessagingGateway
	summarizer  Summarizer
	checkpoints Checkpointer
	logger      *slog.Logger
	retry       RetryPolicy
	copy        Copy

	machine  runMachine
	store    *StateStore
	router   *EventRouter
	aborted  atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *Orchestrator) { o.retry = p }
}

func WithCheckpointer(c Checkpointer) Option {
	return func(o *Orchestrator) { o.checkpoints = c }
}

func WithCopy(c Copy) Option {
	return func(o *Orchestrator) { o.copy = c }
}

func NewOrchestrator(run Run, gateway MessagingGateway, summarizer Summarizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		run:        run,
		gateway:    gateway,
		summarizer: summarizer,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		retry:      DefaultRetryPolicy(),
		copy:       DefaultCopy(),
		store:      NewStateStore(),
		router:     NewEventRouter(),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("run_id", run.ID)
	return o
}

func (o *Orchestrator) Run() Run {
	return o.run
}

// Done is closed once the run reaches Done or Failed.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

func (o *Orchestrator) State() RunState {
	state, _ := o.machine.current()
	return state
}

func (o *Orchestrator) Status() Status {
	state, err := o.machine.current()
	status := Status{RunID: o.run.ID, State: state}
	if err != nil {
		status.Error = err.Error()
	}
	for _, id := range o.store.Members() {
		c := o.store.mustGet(id)
		c.mu.Lock()
		status.Members = append(status.Members, c.status())
		c.mu.Unlock()
	}
	return status
}

func (o *Orchestrator) Snapshot() Snapshot {
	return o.store.Snapshot(o.run.ID)
}

// Abort stops the run. Gateway calls already in flight finish, but no new
// transition starts and the run ends Failed.
func (o *Orchestrator) Abort() {
	o.aborted.Store(true)
	o.Fail(ErrAborted)
}

// Fail moves a non-terminal run to Failed.
func (o *Orchestrator) Fail(err error) {
	if o.machine.fail(err) {
		o.logger.Error("standup run failed", "error", err)
		o.finish()
	}
}

func (o *Orchestrator) finish() {
	o.doneOnce.Do(func() { close(o.done) })
}

func (o *Orchestrator) result() Result {
	res := Result{Run: o.run}
	for _, id := range o.store.Members() {
		c := o.store.mustGet(id)
		c.mu.Lock()
		mr := MemberResult{MemberID: c.memberID, Reason: string(c.reason)}
		switch {
		case c.state == StateCompleted:
			mr.Status = ResultCompleted
			mr.Answers = append([]Answer(nil), c.answers...)
		case c.reason == ReasonUndeliverable:
			mr.Status = ResultErrored
			if c.lastErr != "" {
				mr.Reason = string(c.reason) + ": " + c.lastErr
			}
		default:
			mr.Status = ResultOptedOut
		}
		c.mu.Unlock()
		res.Members = append(res.Members, mr)
	}
	return res
}
