package standup

import (
	"fmt"
	"slices"
	"sync"
)

type MemberState int

const (
	StateNotStarted MemberState = iota
	StateInitiating
	StateAwaitingChoice
	StateAnswering
	StateOptedOut
	StateCompleted
)

var memberStateNames = [...]string{
	StateNotStarted:     "not_started",
	StateInitiating:     "initiating",
	StateAwaitingChoice: "awaiting_choice",
	StateAnswering:      "answering",
	StateOptedOut:       "opted_out",
	StateCompleted:      "completed",
}

func (s MemberState) String() string {
	if s < 0 || int(s) >= len(memberStateNames) {
		return fmt.Sprintf("member_state(%d)", int(s))
	}
	return memberStateNames[s]
}

func (s MemberState) Terminal() bool {
	return s == StateOptedOut || s == StateCompleted
}

func (s MemberState) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(memberStateNames) {
		return nil, fmt.Errorf("unknown member state %d", int(s))
	}
	return []byte(memberStateNames[s]), nil
}

func (s *MemberState) UnmarshalText(b []byte) error {
	for i, name := range memberStateNames {
		if name == string(b) {
			*s = MemberState(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown member state %q", ErrCorruptSnapshot, string(b))
}

// memberTransitions lists the legal moves out of each non-terminal state.
// AwaitingChoice -> Initiating is the recovery path: a restarted run re-sends
// the init prompt after neutralizing the old one.
var memberTransitions = map[MemberState][]MemberState{
	StateNotStarted:     {StateInitiating, StateOptedOut},
	StateInitiating:     {StateAwaitingChoice, StateOptedOut},
	StateAwaitingChoice: {StateInitiating, StateAnswering, StateOptedOut},
	StateAnswering:      {StateCompleted, StateOptedOut},
}

type Phase string

const (
	PhaseInit      Phase = "init"
	PhaseAnswering Phase = "answering"
)

var phases = []Phase{PhaseInit, PhaseAnswering}

type OptOutReason string

const (
	ReasonNone          OptOutReason = ""
	ReasonNotWorking    OptOutReason = "not_working"
	ReasonUndeliverable OptOutReason = "undeliverable"
	ReasonNoResponse    OptOutReason = "no_response"
)

type PostedMessage struct {
	Ref  MessageRef `json:"ref"`
	Live bool       `json:"live"`
}

type Answer struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// MemberConversation is one member's progress through a run. All access goes
// through mu; the orchestrator holds it for the whole of a transition so that
// a member's transitions never interleave.
type MemberConversation struct {
	mu sync.Mutex

	memberID string
	target   string
	state    MemberState
	reason   OptOutReason
	lastErr  string
	messages map[Phase][]PostedMessage
	answers  []Answer
}

func newMemberConversation(memberID string) *MemberConversation {
	return &MemberConversation{
		memberID: memberID,
		state:    StateNotStarted,
		messages: make(map[Phase][]PostedMessage),
	}
}

func (c *MemberConversation) transition(to MemberState) error {
	if c.state.Terminal() {
		return fmt.Errorf("%w: member %s is %s", ErrAlreadyTerminal, c.memberID, c.state)
	}
	if !slices.Contains(memberTransitions[c.state], to) {
		return fmt.Errorf("illegal transition %s -> %s for member %s", c.state, to, c.memberID)
	}
	c.state = to
	return nil
}

func (c *MemberConversation) optOut(reason OptOutReason, cause error) error {
	if err := c.transition(StateOptedOut); err != nil {
		return err
	}
	c.reason = reason
	if cause != nil {
		c.lastErr = cause.Error()
	}
	return nil
}

func (c *MemberConversation) live(phase Phase) (MessageRef, bool) {
	for _, m := range c.messages[phase] {
		if m.Live {
			return m.Ref, true
		}
	}
	return MessageRef{}, false
}

// record appends ref as the live message of phase. Anything still live in that
// phase is marked superseded so there is never more than one.
func (c *MemberConversation) record(phase Phase, ref MessageRef) {
	c.retire(phase)
	if c.messages == nil {
		c.messages = make(map[Phase][]PostedMessage)
	}
	c.messages[phase] = append(c.messages[phase], PostedMessage{Ref: ref, Live: true})
}

func (c *MemberConversation) retire(phase Phase) {
	msgs := c.messages[phase]
	for i := range msgs {
		msgs[i].Live = false
	}
}

func (c *MemberConversation) snapshot() MemberSnapshot {
	return MemberSnapshot{
		MemberID: c.memberID,
		Target:   c.target,
		State:    c.state,
		Reason:   c.reason,
		Error:    c.lastErr,
		Messages: cloneMessages(c.messages),
		Answers:  slices.Clone(c.answers),
	}
}

func (c *MemberConversation) status() MemberStatus {
	return MemberStatus{
		MemberID: c.memberID,
		State:    c.state,
		Reason:   c.reason,
		Answered: len(c.answers),
	}
}

func cloneMessages(in map[Phase][]PostedMessage) map[Phase][]PostedMessage {
	if in == nil {
		return nil
	}
	out := make(map[Phase][]PostedMessage, len(in))
	for phase, msgs := range in {
		out[phase] = slices.Clone(msgs)
	}
	return out
}
