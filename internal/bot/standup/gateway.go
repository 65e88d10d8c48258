package standup

import "context"

// MessageRef identifies a posted message well enough to edit it later.
type MessageRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota
	ButtonSecondary
	ButtonSuccess
)

type Button struct {
	Label    string
	ActionID string
	Style    ButtonStyle
}

type Field struct {
	Name  string
	Value string
}

// Content is a transport-neutral message body. A Content without buttons is
// inert: nothing in it can produce an interaction event.
type Content struct {
	Text    string
	Title   string
	Fields  []Field
	Buttons []Button
}

func (c Content) Interactive() bool {
	return len(c.Buttons) > 0
}

// MessagingGateway is the narrow chat capability the orchestrator depends on.
// OpenConversation must be idempotent per member.
type MessagingGateway interface {
	OpenConversation(ctx context.Context, memberID string) (string, error)
	PostMessage(ctx context.Context, target string, content Content) (MessageRef, error)
	UpdateMessage(ctx context.Context, ref MessageRef, content Content) error
}
