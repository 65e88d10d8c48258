package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gurkunwar/standupbot/internal/bot/standup"
	"github.com/bwmarrin/discordgo"
)

var adminPermission int64 = discordgo.PermissionAdministrator

var Commands = []*discordgo.ApplicationCommand{
	{
		Name:                     "standup-run",
		Description:              "Start today's standup round right now",
		DefaultMemberPermissions: &adminPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "standup",
				Description: "ID of the standup to run",
				Required:    true,
			},
		},
	},
	{
		Name:                     "standup-status",
		Description:              "Show who has answered in the current round",
		DefaultMemberPermissions: &adminPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "standup",
				Description: "ID of the standup",
				Required:    true,
			},
		},
	},
}

func (h *BotHandler) handleCommand(s *discordgo.Session, intr *discordgo.InteractionCreate) {
	data := intr.ApplicationCommandData()
	if !isServerAdmin(intr) {
		respondWithError(s, intr.Interaction, "Only server administrators can manage standups.")
		return
	}

	standupID, ok := standupOption(data)
	if !ok {
		respondWithError(s, intr.Interaction, "Please pass a standup ID.")
		return
	}

	switch data.Name {
	case "standup-run":
		h.handleRunCommand(s, intr, standupID)
	case "standup-status":
		status, ok := h.Standups.StatusFor(standupID)
		if !ok {
			respondWithMessage(s, intr, fmt.Sprintf("💤 Standup #%d has no round in progress.", standupID), true)
			return
		}
		respondWithMessage(s, intr, formatStatus(status), true)
	}
}

func (h *BotHandler) handleRunCommand(s *discordgo.Session, intr *discordgo.InteractionCreate, standupID uint) {
	if err := respondWithMessage(s, intr, fmt.Sprintf("🚀 Starting standup #%d...", standupID), true); err != nil {
		h.Logger.Warn("cannot acknowledge command", "error", err)
	}

	go func() {
		runID, err := h.Standups.Trigger(context.Background(), standupID)
		if err != nil {
			h.Logger.Error("manual standup trigger failed", "standup_id", standupID, "error", err)
			return
		}
		h.Logger.Info("manual standup started", "standup_id", standupID, "run_id", runID, "by", extractUserID(intr))
	}()
}

func standupOption(data discordgo.ApplicationCommandInteractionData) (uint, bool) {
	for _, opt := range data.Options {
		if opt.Name == "standup" && opt.Type == discordgo.ApplicationCommandOptionInteger {
			id := opt.IntValue()
			if id <= 0 {
				return 0, false
			}
			return uint(id), true
		}
	}
	return 0, false
}

func formatStatus(status standup.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** is `%s`\n", status.RunID, status.State)
	if status.Error != "" {
		fmt.Fprintf(&b, "⚠️ %s\n", status.Error)
	}

	for _, m := range status.Members {
		line := fmt.Sprintf("• <@%s> %s", m.MemberID, m.State)
		if m.Reason != "" {
			line += fmt.Sprintf(" (%s)", m.Reason)
		}
		if m.Answered > 0 {
			line += fmt.Sprintf(", %d answered", m.Answered)
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
