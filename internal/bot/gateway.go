package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/Gurkunwar/standupbot/internal/bot/standup"
	"github.com/bwmarrin/discordgo"
)

// discordAPI is the slice of *discordgo.Session the gateway uses.
type discordAPI interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Gateway implements standup.MessagingGateway on top of Discord DMs.
type Gateway struct {
	api discordAPI

	mu  sync.Mutex
	dms map[string]string
}

func NewGateway(api discordAPI) *Gateway {
	return &Gateway{api: api, dms: make(map[string]string)}
}

func (g *Gateway) OpenConversation(ctx context.Context, memberID string) (string, error) {
	g.mu.Lock()
	channelID, ok := g.dms[memberID]
	g.mu.Unlock()
	if ok {
		return channelID, nil
	}

	channel, err := g.api.UserChannelCreate(memberID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("open dm with %s: %w", memberID, err)
	}

	g.mu.Lock()
	g.dms[memberID] = channel.ID
	g.mu.Unlock()
	return channel.ID, nil
}

func (g *Gateway) PostMessage(ctx context.Context, target string, content standup.Content) (standup.MessageRef, error) {
	msg, err := g.api.ChannelMessageSendComplex(target, messageSend(content), discordgo.WithContext(ctx))
	if err != nil {
		return standup.MessageRef{}, fmt.Errorf("send message to %s: %w", target, err)
	}
	return standup.MessageRef{ChannelID: msg.ChannelID, MessageID: msg.ID}, nil
}

func (g *Gateway) UpdateMessage(ctx context.Context, ref standup.MessageRef, content standup.Content) error {
	if _, err := g.api.ChannelMessageEditComplex(messageEdit(ref, content), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("edit message %s: %w", ref.MessageID, err)
	}
	return nil
}
