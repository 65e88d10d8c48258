package bot

import (
	"fmt"

	"github.com/Gurkunwar/standupbot/internal/bot/standup"
	"github.com/bwmarrin/discordgo"
)

const (
	embedColor      = 0x5865F2
	answerInputID   = "answer_text"
	maxFieldValue   = 1024
	maxModalLabel   = 45
	maxPlaceholder  = 100
	maxAnswerLength = 1000
)

func messageSend(content standup.Content) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:    content.Text,
		Embeds:     embedsFor(content),
		Components: componentsFor(content),
	}
}

func messageEdit(ref standup.MessageRef, content standup.Content) *discordgo.MessageEdit {
	text := content.Text
	embeds := embedsFor(content)
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	components := componentsFor(content)

	return &discordgo.MessageEdit{
		ID:         ref.MessageID,
		Channel:    ref.ChannelID,
		Content:    &text,
		Embeds:     &embeds,
		Components: &components,
	}
}

func embedsFor(content standup.Content) []*discordgo.MessageEmbed {
	if content.Title == "" && len(content.Fields) == 0 {
		return nil
	}

	var fields []*discordgo.MessageEmbedField
	for _, f := range content.Fields {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   truncate(f.Name, 256),
			Value:  truncate(f.Value, maxFieldValue),
			Inline: false,
		})
	}
	return []*discordgo.MessageEmbed{{
		Title:  content.Title,
		Color:  embedColor,
		Fields: fields,
	}}
}

// componentsFor always returns a non-nil slice so an edit clears old buttons.
func componentsFor(content standup.Content) []discordgo.MessageComponent {
	if !content.Interactive() {
		return []discordgo.MessageComponent{}
	}

	buttons := make([]discordgo.MessageComponent, 0, len(content.Buttons))
	for _, b := range content.Buttons {
		buttons = append(buttons, discordgo.Button{
			Label:    b.Label,
			Style:    buttonStyle(b.Style),
			CustomID: b.ActionID,
		})
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: buttons},
	}
}

func buttonStyle(s standup.ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case standup.ButtonSecondary:
		return discordgo.SecondaryButton
	case standup.ButtonSuccess:
		return discordgo.SuccessButton
	default:
		return discordgo.PrimaryButton
	}
}

func answerModal(customID, question string, qIndex int) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customID,
			Title:    fmt.Sprintf("Question %d", qIndex+1),
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    answerInputID,
							Label:       truncate(question, maxModalLabel),
							Style:       discordgo.TextInputParagraph,
							Required:    true,
							MaxLength:   maxAnswerLength,
							Placeholder: truncate(question, maxPlaceholder),
						},
					},
				},
			},
		},
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
