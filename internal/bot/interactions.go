package bot

import (
	"fmt"
	"strings"

	"github.com/Gurkunwar/standupbot/internal/bot/standup"
	"github.com/bwmarrin/discordgo"
)

// interactionFromDiscord converts a button click or modal submit into a
// standup event. Other interaction types are malformed for the standup flow.
func interactionFromDiscord(intr *discordgo.InteractionCreate) (standup.Interaction, error) {
	ev := standup.Interaction{
		MemberID:  extractUserID(intr),
		ChannelID: intr.ChannelID,
	}
	if intr.Message != nil {
		ev.MessageID = intr.Message.ID
		if intr.Message.ChannelID != "" {
			ev.ChannelID = intr.Message.ChannelID
		}
	}

	var customID string
	switch intr.Type {
	case discordgo.InteractionMessageComponent:
		customID = intr.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		data := intr.ModalSubmitData()
		customID = data.CustomID
		ev.Value = modalValue(data)
	default:
		return ev, fmt.Errorf("%w: interaction type %v", standup.ErrMalformedEvent, intr.Type)
	}

	runID, kind, idx, err := standup.ParseActionID(customID)
	if err != nil {
		return ev, err
	}
	ev.RunID, ev.Kind, ev.PromptIndex = runID, kind, idx

	return ev, ev.Validate()
}

func modalValue(data discordgo.ModalSubmitInteractionData) string {
	for _, comp := range data.Components {
		row, ok := comp.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok && input.CustomID == answerInputID {
				return strings.TrimSpace(input.Value)
			}
		}
	}
	return ""
}
