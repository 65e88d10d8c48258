package standup

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc"
)

// Begin seeds the conversation store, either fresh or from prior, and sends
// every non-terminal member their opening prompt concurrently. A member that
// cannot be reached is opted out with ReasonUndeliverable instead of holding
// up the round. Only a bad definition or snapshot fails the run.
func (o *Orchestrator) Begin(ctx context.Context, prior *Snapshot) error {
	if !o.machine.advance(RunIdle, RunInitializing) {
		return ErrRunNotIdle
	}
	o.logger.Info("standup run initializing",
		"standup", o.run.Definition.Name,
		"members", len(o.run.Definition.Members),
		"recovering", prior != nil)

	if err := o.seed(prior); err != nil {
		o.Fail(err)
		return err
	}

	var wg conc.WaitGroup
	for _, memberID := range o.store.Members() {
		wg.Go(func() { o.initiate(ctx, memberID) })
	}
	if r := wg.WaitAndRecover(); r != nil {
		err := fmt.Errorf("member fan-out panicked: %v", r.Value)
		o.Fail(err)
		return err
	}

	if !o.machine.advance(RunInitializing, RunAwaitingResponses) {
		_, err := o.machine.current()
		return err
	}
	o.logger.Info("standup run awaiting responses")
	o.maybeSummarize(ctx)
	return nil
}

func (o *Orchestrator) seed(prior *Snapshot) error {
	def := o.run.Definition
	if err := def.Validate(); err != nil {
		return err
	}

	recovered := make(map[string]MemberSnapshot)
	if prior != nil {
		if prior.RunID != o.run.ID {
			return fmt.Errorf("%w: snapshot belongs to run %q", ErrCorruptSnapshot, prior.RunID)
		}
		if err := prior.Validate(); err != nil {
			return err
		}
		for _, m := range prior.Members {
			if !def.hasMember(m.MemberID) {
				return fmt.Errorf("%w: member %s is not in the standup", ErrCorruptSnapshot, m.MemberID)
			}
			recovered[m.MemberID] = m
		}
	}

	full := Snapshot{RunID: o.run.ID, Members: make([]MemberSnapshot, 0, len(def.Members))}
	for _, id := range def.Members {
		if m, ok := recovered[id]; ok {
			full.Members = append(full.Members, m)
			continue
		}
		full.Members = append(full.Members, newMemberConversation(id).snapshot())
	}
	if err := o.store.Restore(full); err != nil {
		return err
	}

	for _, m := range full.Members {
		for phase, msgs := range m.Messages {
			for _, msg := range msgs {
				if msg.Live {
					o.router.Record(m.MemberID, phase, msg.Ref)
				}
			}
		}
	}
	return nil
}

func (o *Orchestrator) initiate(ctx context.Context, memberID string) {
	c := o.store.mustGet(memberID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Terminal() || o.aborted.Load() {
		return
	}

	if c.state == StateAnswering {
		// Recovered mid-questions: re-ask the pending prompt.
		o.supersede(ctx, c, PhaseAnswering, inert(o.copy.Superseded))
		o.askNext(ctx, c)
		o.checkpoint(ctx, c)
		return
	}

	if c.state != StateInitiating {
		if err := c.transition(StateInitiating); err != nil {
			o.logger.Error("cannot initiate member", "member_id", memberID, "error", err)
			return
		}
	}

	if err := o.ensureTarget(ctx, c); err != nil {
		o.undeliverable(c, err)
		o.checkpoint(ctx, c)
		return
	}
	if o.aborted.Load() {
		o.checkpoint(ctx, c)
		return
	}

	o.supersede(ctx, c, PhaseInit, inert(o.copy.Superseded))
	if err := o.post(ctx, c, PhaseInit, o.copy.initContent(o.run)); err != nil {
		o.undeliverable(c, err)
		o.checkpoint(ctx, c)
		return
	}

	_ = c.transition(StateAwaitingChoice)
	o.logger.Info("standup prompt delivered", "member_id", memberID)
	o.checkpoint(ctx, c)
}

// HandleInteraction applies a click or answer to the conversation owning the
// referenced message. It never fails: events for stale messages, unknown
// members or finished conversations come back as an ignored Ack and change
// nothing.
func (o *Orchestrator) HandleInteraction(ctx context.Context, ev Interaction) Ack {
	if err := ev.Validate(); err != nil {
		return o.ignore(ev, err)
	}
	if ev.RunID != o.run.ID {
		return o.ignore(ev, fmt.Errorf("%w: %s", ErrUnknownRun, ev.RunID))
	}
	if o.aborted.Load() {
		return o.ignore(ev, ErrAborted)
	}

	memberID, phase, ok := o.router.Route(ev)
	if !ok {
		c, known := o.store.Get(ev.MemberID)
		if !known {
			return o.ignore(ev, ErrUnknownMember)
		}
		c.mu.Lock()
		terminal := c.state.Terminal()
		c.mu.Unlock()
		if terminal {
			return o.ignore(ev, ErrAlreadyTerminal)
		}
		return o.ignore(ev, ErrStaleReference)
	}

	c := o.store.mustGet(memberID)
	c.mu.Lock()
	err := o.apply(ctx, c, phase, ev)
	if err == nil {
		o.checkpoint(ctx, c)
	}
	c.mu.Unlock()

	if err != nil {
		return o.ignore(ev, err)
	}
	o.maybeSummarize(ctx)
	return Ack{Applied: true}
}

func (o *Orchestrator) apply(ctx context.Context, c *MemberConversation, phase Phase, ev Interaction) error {
	if c.state.Terminal() {
		return ErrAlreadyTerminal
	}
	if o.aborted.Load() {
		return ErrAborted
	}
	// The router may have matched just before a concurrent supersede.
	if live, ok := c.live(phase); !ok || live != ev.Ref() {
		return ErrStaleReference
	}

	switch ev.Kind {
	case ActionNotWorking, ActionStart:
		if phase != PhaseInit || c.state != StateAwaitingChoice {
			return ErrStaleReference
		}
	case ActionAnswer:
		if phase != PhaseAnswering || c.state != StateAnswering || ev.PromptIndex != len(c.answers) {
			return ErrStaleReference
		}
	}

	logger := o.logger.With("member_id", c.memberID, "phase", string(phase))
	switch ev.Kind {
	case ActionNotWorking:
		o.supersede(ctx, c, PhaseInit, inert(o.copy.NotWorking))
		if err := c.optOut(ReasonNotWorking, nil); err != nil {
			return err
		}
		logger.Info("member not working today")

	case ActionStart:
		o.supersede(ctx, c, PhaseInit, inert(o.copy.Started))
		if err := c.transition(StateAnswering); err != nil {
			return err
		}
		logger.Info("member started standup")
		o.askNext(ctx, c)

	case ActionAnswer:
		answer := Answer{
			Prompt:   o.run.Definition.Prompts[ev.PromptIndex],
			Response: strings.TrimSpace(ev.Value),
		}
		c.answers = append(c.answers, answer)
		o.supersede(ctx, c, PhaseAnswering, o.copy.answeredContent(o.run, ev.PromptIndex, answer))
		logger.Debug("answer recorded", "prompt", ev.PromptIndex)
		o.askNext(ctx, c)
	}
	return nil
}

// askNext posts the first unanswered prompt, or completes the conversation
// when every prompt has a response.
func (o *Orchestrator) askNext(ctx context.Context, c *MemberConversation) {
	idx := len(c.answers)
	if idx >= len(o.run.Definition.Prompts) {
		if err := c.transition(StateCompleted); err == nil {
			o.logger.Info("member completed standup", "member_id", c.memberID)
		}
		return
	}

	if err := o.ensureTarget(ctx, c); err != nil {
		o.undeliverable(c, err)
		return
	}
	if err := o.post(ctx, c, PhaseAnswering, o.copy.questionContent(o.run, idx)); err != nil {
		o.undeliverable(c, err)
	}
}

// CloseOut ends the collection window: every member still pending has their
// live messages neutralized and is opted out with ReasonNoResponse.
func (o *Orchestrator) CloseOut(ctx context.Context) error {
	state := o.State()
	if state == RunIdle || state.Terminal() || o.aborted.Load() {
		return fmt.Errorf("%w: run %s is %s", ErrRunNotActive, o.run.ID, state)
	}

	closed := 0
	for _, id := range o.store.Members() {
		c := o.store.mustGet(id)
		c.mu.Lock()
		if !c.state.Terminal() {
			for _, phase := range phases {
				o.supersede(ctx, c, phase, inert(o.copy.Closed))
			}
			if err := c.optOut(ReasonNoResponse, nil); err == nil {
				closed++
				o.checkpoint(ctx, c)
			}
		}
		c.mu.Unlock()
	}

	o.logger.Info("standup closed out", "unanswered", closed)
	o.maybeSummarize(ctx)
	return nil
}

func (o *Orchestrator) maybeSummarize(ctx context.Context) {
	if !o.store.allTerminal() {
		return
	}
	if !o.machine.advance(RunAwaitingResponses, RunSummarizing) {
		return
	}

	result := o.result()
	o.logger.Info("all members resolved, summarizing", "members", len(result.Members))

	if o.summarizer != nil {
		_, err := retry(ctx, o.retry, func() (struct{}, error) {
			return struct{}{}, o.summarizer.Summarize(ctx, result)
		})
		if err != nil {
			o.Fail(fmt.Errorf("summarize run: %w", err))
			return
		}
	}

	if o.machine.advance(RunSummarizing, RunDone) {
		o.logger.Info("standup run done")
		o.finish()
	}
}

// supersede neutralizes the live message of phase, if any. The reference is
// retired even when the edit fails, so clicks on it are treated as stale.
func (o *Orchestrator) supersede(ctx context.Context, c *MemberConversation, phase Phase, content Content) {
	ref, ok := c.live(phase)
	if !ok {
		return
	}
	c.retire(phase)
	o.router.Supersede(c.memberID, phase)

	if err := o.update(ctx, c, ref, content); err != nil {
		o.logger.Warn("could not neutralize superseded message",
			"member_id", c.memberID, "phase", string(phase), "error", err)
	}
}

func (o *Orchestrator) ensureTarget(ctx context.Context, c *MemberConversation) error {
	if c.target != "" {
		return nil
	}
	target, err := retry(ctx, o.retry, func() (string, error) {
		return o.gateway.OpenConversation(ctx, c.memberID)
	})
	if err != nil {
		return &TransportError{Op: "open conversation", MemberID: c.memberID, Err: err}
	}
	c.target = target
	return nil
}

func (o *Orchestrator) post(ctx context.Context, c *MemberConversation, phase Phase, content Content) error {
	ref, err := retry(ctx, o.retry, func() (MessageRef, error) {
		return o.gateway.PostMessage(ctx, c.target, content)
	})
	if err != nil {
		return &TransportError{Op: "post message", MemberID: c.memberID, Err: err}
	}
	c.record(phase, ref)
	o.router.Record(c.memberID, phase, ref)
	return nil
}

func (o *Orchestrator) update(ctx context.Context, c *MemberConversation, ref MessageRef, content Content) error {
	_, err := retry(ctx, o.retry, func() (struct{}, error) {
		return struct{}{}, o.gateway.UpdateMessage(ctx, ref, content)
	})
	if err != nil {
		return &TransportError{Op: "update message", MemberID: c.memberID, Err: err}
	}
	return nil
}

func (o *Orchestrator) undeliverable(c *MemberConversation, err error) {
	if optErr := c.optOut(ReasonUndeliverable, err); optErr != nil {
		o.logger.Error("cannot opt out unreachable member", "member_id", c.memberID, "error", optErr)
		return
	}
	o.logger.Error("member unreachable, skipping", "member_id", c.memberID, "error", err)
}

func (o *Orchestrator) checkpoint(ctx context.Context, c *MemberConversation) {
	if o.checkpoints == nil {
		return
	}
	if err := o.checkpoints.Save(ctx, o.run.ID, c.snapshot()); err != nil {
		o.logger.Warn("checkpoint failed", "member_id", c.memberID, "error", err)
	}
}

func (o *Orchestrator) ignore(ev Interaction, err error) Ack {
	o.logger.Debug("interaction ignored",
		"member_id", ev.MemberID, "action", ev.Kind.String(), "reason", err)
	return Ack{Ignored: err}
}
