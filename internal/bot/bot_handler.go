package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Gurkunwar/standupbot/internal/bot/standup"
	"github.com/bwmarrin/discordgo"
)

// StandupRunner is what the Discord handler needs from the service layer.
type StandupRunner interface {
	Trigger(ctx context.Context, standupID uint) (string, error)
	StatusFor(standupID uint) (standup.Status, bool)
	Prompt(runID string, idx int) (string, bool)
	HandleInteraction(ctx context.Context, ev standup.Interaction) standup.Ack
}

type BotHandler struct {
	Standups StandupRunner
	Logger   *slog.Logger
}

func NewBotHandler(standups StandupRunner, logger *slog.Logger) *BotHandler {
	return &BotHandler{Standups: standups, Logger: logger}
}

func (h *BotHandler) OnInteraction(s *discordgo.Session, intr *discordgo.InteractionCreate) {
	switch intr.Type {
	case discordgo.InteractionApplicationCommand:
		h.handleCommand(s, intr)
	case discordgo.InteractionMessageComponent:
		h.handleComponent(s, intr)
	case discordgo.InteractionModalSubmit:
		h.dispatch(s, intr)
	}
}

func (h *BotHandler) handleComponent(s *discordgo.Session, intr *discordgo.InteractionCreate) {
	customID := intr.MessageComponentData().CustomID
	runID, kind, idx, err := standup.ParseActionID(customID)
	if err != nil {
		h.Logger.Debug("ignoring foreign component", "custom_id", customID)
		if err := deferUpdate(s, intr); err != nil {
			h.Logger.Warn("cannot acknowledge foreign component", "error", err)
		}
		return
	}

	if kind != standup.ActionAnswer {
		h.dispatch(s, intr)
		return
	}

	question, ok := h.Standups.Prompt(runID, idx)
	if !ok {
		if err := respondWithError(s, intr.Interaction, "This standup is no longer running."); err != nil {
			h.Logger.Warn("cannot respond to stale answer click", "error", err)
		}
		return
	}
	if err := s.InteractionRespond(intr.Interaction, answerModal(customID, question, idx)); err != nil {
		h.Logger.Error("cannot open answer modal", "run_id", runID, "error", err)
	}
}

// dispatch acknowledges the interaction before the flow does any gateway work,
// so a slow retry never outlives Discord's acknowledgement window.
func (h *BotHandler) dispatch(s *discordgo.Session, intr *discordgo.InteractionCreate) {
	if err := deferUpdate(s, intr); err != nil {
		h.Logger.Warn("cannot acknowledge interaction", "error", err)
	}

	ev, err := interactionFromDiscord(intr)
	if err != nil {
		h.Logger.Debug("dropping malformed interaction", "error", err)
		return
	}

	ack := h.Standups.HandleInteraction(context.Background(), ev)
	switch {
	case ack.Applied:
		h.Logger.Debug("interaction applied", "run_id", ev.RunID, "member_id", ev.MemberID, "kind", ev.Kind.String())
	case ack.Ignored != nil && !errors.Is(ack.Ignored, standup.ErrStaleReference):
		h.Logger.Info("interaction ignored", "run_id", ev.RunID, "member_id", ev.MemberID, "reason", ack.Ignored)
	}
}
