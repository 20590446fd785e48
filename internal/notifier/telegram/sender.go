// Package telegram delivers notifications through the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Config carries the bot credentials and the destination chat.
type Config struct {
	Token string
	// ChatID is a numeric chat id or a public "@channelusername".
	ChatID  string
	APIURL  string
	Timeout time.Duration
}

// chat is passed to the Bot API verbatim as chat_id.
type chat string

func (c chat) Recipient() string { return string(c) }

// ValidChatID reports whether id is a numeric chat id or an "@username".
func ValidChatID(id string) bool {
	if strings.HasPrefix(id, "@") {
		return len(id) > 1 && !strings.ContainsAny(id, " \t\n")
	}
	_, err := strconv.ParseInt(id, 10, 64)
	return err == nil
}

// Sender posts plain text messages to one chat.
type Sender struct {
	bot  *tele.Bot
	chat tele.Recipient
}

// New builds a Sender. The bot runs offline: it never polls for updates and does not
// call getMe at construction.
func New(cfg Config, client *http.Client) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	chatID := strings.TrimSpace(cfg.ChatID)
	if chatID == "" {
		return nil, errors.New("telegram chat id is empty")
	}
	if !ValidChatID(chatID) {
		return nil, fmt.Errorf("telegram chat id %q is neither numeric nor @username", chatID)
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Client:  client,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Sender{bot: b, chat: chat(chatID)}, nil
}

// Send posts text to the configured chat.
func (s *Sender) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.bot.Send(s.chat, text); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
