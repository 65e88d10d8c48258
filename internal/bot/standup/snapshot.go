package standup

import (
	"fmt"
	"slices"
)

// Snapshot is the persisted shape of a run's conversations.
type Snapshot struct {
	RunID   string           `json:"run_id"`
	Members []MemberSnapshot `json:"members"`
}

type MemberSnapshot struct {
	MemberID string                    `json:"member_id"`
	Target   string                    `json:"target,omitempty"`
	State    MemberState               `json:"state"`
	Reason   OptOutReason              `json:"reason,omitempty"`
	Error    string                    `json:"error,omitempty"`
	Messages map[Phase][]PostedMessage `json:"messages"`
	Answers  []Answer                  `json:"answers"`
}

func (s Snapshot) Validate() error {
	if s.RunID == "" {
		return fmt.Errorf("%w: missing run id", ErrCorruptSnapshot)
	}
	seen := make(map[string]struct{}, len(s.Members))
	for _, m := range s.Members {
		if _, dup := seen[m.MemberID]; dup {
			return fmt.Errorf("%w: duplicate member %s", ErrCorruptSnapshot, m.MemberID)
		}
		seen[m.MemberID] = struct{}{}
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (m MemberSnapshot) Validate() error {
	if m.MemberID == "" {
		return fmt.Errorf("%w: member without id", ErrCorruptSnapshot)
	}
	if m.State < StateNotStarted || m.State > StateCompleted {
		return fmt.Errorf("%w: member %s has unknown state %d", ErrCorruptSnapshot, m.MemberID, int(m.State))
	}
	if m.State == StateOptedOut && m.Reason == ReasonNone {
		return fmt.Errorf("%w: member %s opted out without a reason", ErrCorruptSnapshot, m.MemberID)
	}
	if m.State != StateOptedOut && m.Reason != ReasonNone {
		return fmt.Errorf("%w: member %s is %s but has reason %q", ErrCorruptSnapshot, m.MemberID, m.State, m.Reason)
	}

	for phase, msgs := range m.Messages {
		if !slices.Contains(phases, phase) {
			return fmt.Errorf("%w: member %s has unknown phase %q", ErrCorruptSnapshot, m.MemberID, phase)
		}
		live := 0
		for _, msg := range msgs {
			if msg.Ref.ChannelID == "" || msg.Ref.MessageID == "" {
				return fmt.Errorf("%w: member %s has an empty message reference", ErrCorruptSnapshot, m.MemberID)
			}
			if msg.Live {
				live++
			}
		}
		if live > 1 {
			return fmt.Errorf("%w: member %s has %d live messages in phase %s", ErrCorruptSnapshot, m.MemberID, live, phase)
		}
		if live > 0 && m.State.Terminal() {
			return fmt.Errorf("%w: member %s is %s with a live message", ErrCorruptSnapshot, m.MemberID, m.State)
		}
	}
	return nil
}

func restoreMember(m MemberSnapshot) *MemberConversation {
	return &MemberConversation{
		memberID: m.MemberID,
		target:   m.Target,
		state:    m.State,
		reason:   m.Reason,
		lastErr:  m.Error,
		messages: cloneMessages(m.Messages),
		answers:  slices.Clone(m.Answers),
	}
}
