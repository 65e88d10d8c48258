package standup

import (
	"fmt"
	"strconv"
	"strings"
)

type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionNotWorking
	ActionStart
	ActionAnswer
)

func (k ActionKind) String() string {
	switch k {
	case ActionNotWorking:
		return "skip"
	case ActionStart:
		return "start"
	case ActionAnswer:
		return "answer"
	default:
		return "unknown"
	}
}

const actionPrefix = "standup"

// ActionID encodes the custom id carried by an interactive button so the click
// can be traced back to its run. Format: standup:<run>:<kind>[:<prompt>].
func ActionID(runID string, kind ActionKind, promptIndex int) string {
	if kind == ActionAnswer {
		return fmt.Sprintf("%s:%s:%s:%d", actionPrefix, runID, kind, promptIndex)
	}
	return fmt.Sprintf("%s:%s:%s", actionPrefix, runID, kind)
}

func ParseActionID(id string) (runID string, kind ActionKind, promptIndex int, err error) {
	parts := strings.Split(id, ":")
	if len(parts) < 3 || parts[0] != actionPrefix || parts[1] == "" {
		return "", ActionUnknown, 0, fmt.Errorf("%w: action id %q", ErrMalformedEvent, id)
	}

	runID = parts[1]
	switch {
	case parts[2] == ActionNotWorking.String() && len(parts) == 3:
		return runID, ActionNotWorking, 0, nil
	case parts[2] == ActionStart.String() && len(parts) == 3:
		return runID, ActionStart, 0, nil
	case parts[2] == ActionAnswer.String() && len(parts) == 4:
		idx, convErr := strconv.Atoi(parts[3])
		if convErr != nil || idx < 0 {
			return "", ActionUnknown, 0, fmt.Errorf("%w: prompt index in %q", ErrMalformedEvent, id)
		}
		return runID, ActionAnswer, idx, nil
	}
	return "", ActionUnknown, 0, fmt.Errorf("%w: action id %q", ErrMalformedEvent, id)
}

// Interaction is an inbound user action against a message the orchestrator
// posted. Adapters build it from platform payloads and must not pass anything
// that fails Validate.
type Interaction struct {
	RunID       string
	MemberID    string
	ChannelID   string
	MessageID   string
	Kind        ActionKind
	PromptIndex int
	Value       string
}

func (i Interaction) Ref() MessageRef {
	return MessageRef{ChannelID: i.ChannelID, MessageID: i.MessageID}
}

func (i Interaction) Validate() error {
	switch {
	case i.RunID == "":
		return fmt.Errorf("%w: missing run id", ErrMalformedEvent)
	case i.MemberID == "":
		return fmt.Errorf("%w: missing acting member", ErrMalformedEvent)
	case i.ChannelID == "" || i.MessageID == "":
		return fmt.Errorf("%w: missing message reference", ErrMalformedEvent)
	}

	switch i.Kind {
	case ActionNotWorking, ActionStart:
		return nil
	case ActionAnswer:
		if i.PromptIndex < 0 {
			return fmt.Errorf("%w: negative prompt index", ErrMalformedEvent)
		}
		if strings.TrimSpace(i.Value) == "" {
			return fmt.Errorf("%w: empty answer", ErrMalformedEvent)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown action", ErrMalformedEvent)
	}
}
