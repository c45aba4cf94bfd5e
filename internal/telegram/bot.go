package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
)

const pollTimeoutSeconds = 50

// BotClient adapts gotgbot to the Client interface and exposes a long-poll
// receive loop that turns raw updates into Events.
type BotClient struct {
	bot    *gotgbot.Bot
	logger *slog.Logger
	offset int64
}

// NewBotClient authenticates against the platform. A failure here is a
// startup error; the caller's restart loop owns recovery.
func NewBotClient(token string, logger *slog.Logger) (*BotClient, error) {
	bot, err := gotgbot.NewBot(token, nil)
	if err != nil {
		return nil, fmt.Errorf("create bot client: %w", err)
	}
	logger.Info("authenticated to chat platform", "bot", bot.User.Username)
	return &BotClient{bot: bot, logger: logger}, nil
}

func (c *BotClient) SendMessage(_ context.Context, chatID int64, text string) error {
	if _, err := c.bot.SendMessage(chatID, text, nil); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

func (c *BotClient) KickMember(_ context.Context, chatID int64, userID int64) error {
	if _, err := c.bot.BanChatMember(chatID, userID, nil); err != nil {
		return fmt.Errorf("kick member %d from %d: %w", userID, chatID, err)
	}
	return nil
}

func (c *BotClient) UnbanMember(_ context.Context, chatID int64, userID int64) error {
	if _, err := c.bot.UnbanChatMember(chatID, userID, nil); err != nil {
		return fmt.Errorf("unban member %d in %d: %w", userID, chatID, err)
	}
	return nil
}

func (c *BotClient) GetChat(_ context.Context, chatID int64) (Profile, error) {
	chat, err := c.bot.GetChat(chatID, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("get chat %d: %w", chatID, err)
	}
	return Profile{ID: chat.Id, Username: chat.Username}, nil
}

// Poll fetches updates until the context is cancelled, handing each mapped
// event to handle. Transient fetch errors are logged and retried after a
// short pause; only context cancellation ends the loop.
func (c *BotClient) Poll(ctx context.Context, handle func(Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := c.bot.GetUpdates(&gotgbot.GetUpdatesOpts{
			Offset:  c.offset,
			Timeout: pollTimeoutSeconds,
			RequestOpts: &gotgbot.RequestOpts{
				Timeout: (pollTimeoutSeconds + 10) * time.Second,
			},
		})
		if err != nil {
			c.logger.Error("fetch updates failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateId >= c.offset {
				c.offset = update.UpdateId + 1
			}
			if ev, ok := MapUpdate(update); ok {
				handle(ev)
			}
		}
	}
}

// MapUpdate converts a raw platform update into an Event. Updates without a
// message payload are dropped here so the router only ever sees messages.
func MapUpdate(update gotgbot.Update) (Event, bool) {
	msg := update.Message
	if msg == nil {
		return Event{}, false
	}

	ev := Event{
		Chat: Chat{ID: msg.Chat.Id, Type: ChatType(msg.Chat.Type)},
	}
	if msg.From != nil {
		ev.Sender = User{ID: msg.From.Id, Username: msg.From.Username, FirstName: msg.From.FirstName}
	}
	if msg.Text != "" {
		ev.Text = msg.Text
		ev.HasText = true
	}
	for _, joined := range msg.NewChatMembers {
		ev.Joined = append(ev.Joined, User{ID: joined.Id, Username: joined.Username, FirstName: joined.FirstName})
	}
	return ev, true
}
