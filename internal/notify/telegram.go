package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender — часть *tgbotapi.BotAPI, которая нужна для отправки.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram пишет в чат, привязанный к группе. Имена групп без учёта регистра.
type Telegram struct {
	api   Sender
	chats map[string]int64
}

func NewTelegram(api Sender, chats map[string]int64) *Telegram {
	norm := make(map[string]int64, len(chats))
	for k, v := range chats {
		norm[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &Telegram{api: api, chats: norm}
}

func (t *Telegram) Notify(ctx context.Context, group, message string) error {
	chatID, ok := t.chats[strings.ToLower(strings.TrimSpace(group))]
	if !ok || chatID == 0 {
		return fmt.Errorf("no telegram chat configured for group %q", group)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// без ParseMode: в артикулах и названиях бывают символы разметки
	if _, err := t.api.Send(tgbotapi.NewMessage(chatID, message)); err != nil {
		return fmt.Errorf("telegram notify: %w", err)
	}
	return nil
}
