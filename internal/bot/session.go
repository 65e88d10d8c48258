package bot

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

func NewSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	dg.Identify.Intents = discordgo.IntentGuilds | discordgo.IntentDirectMessages
	return dg, nil
}

func RegisterCommands(dg *discordgo.Session, logger *slog.Logger) {
	logger.Info("registering bot commands", "count", len(Commands))
	for _, command := range Commands {
		_, err := dg.ApplicationCommandCreate(dg.State.User.ID, "", command)
		if err != nil {
			logger.Error("cannot create command", "command", command.Name, "error", err)
		}
	}
}
