package bot

import (
	"github.com/bwmarrin/discordgo"
)

func extractUserID(intr *discordgo.InteractionCreate) string {
	if intr.Member != nil && intr.Member.User != nil {
		return intr.Member.User.ID
	}
	if intr.User != nil {
		return intr.User.ID
	}
	return ""
}

func isServerAdmin(intr *discordgo.InteractionCreate) bool {
	if intr.Member == nil {
		return false
	}

	return intr.Member.Permissions&discordgo.PermissionAdministrator != 0
}

func respondWithError(session *discordgo.Session, interaction *discordgo.Interaction, message string) error {
	return session.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "❌ " + message,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func respondWithMessage(session *discordgo.Session, intr *discordgo.InteractionCreate, content string,
	ephemeral bool) error {

	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	return session.InteractionRespond(intr.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func deferUpdate(session *discordgo.Session, intr *discordgo.InteractionCreate) error {
	return session.InteractionRespond(intr.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}
