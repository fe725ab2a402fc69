package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/stock-bot/internal/dialog"
	"github.com/Spok95/stock-bot/internal/domain/stock"
	"github.com/Spok95/stock-bot/internal/domain/transfers"
	"github.com/Spok95/stock-bot/internal/operations"
)

// Service — сценарии, доступные из бота.
type Service interface {
	Transfer(ctx context.Context, actor, origin, dest string, lines []stock.TransferLine) *operations.Outcome
	Entry(ctx context.Context, actor, warehouse string, lines []stock.EntryLine) *operations.Outcome
	Availability(ctx context.Context, code, warehouse string, qty float64) (stock.Availability, error)
	RecentTransfers(ctx context.Context) ([]stock.TransferSummary, error)
	Warehouses(ctx context.Context) ([]stock.Warehouse, error)
	Products(ctx context.Context) ([]stock.Product, error)
	Verify(ctx context.Context, pickingID int64) transfers.VerifyResult
	NotifyAsync(ctx context.Context, message string, done func(error))
	Group() string
}

type States interface {
	Get(ctx context.Context, chatID int64) (*dialog.Item, error)
	Set(ctx context.Context, chatID int64, state dialog.State, payload dialog.Payload) error
	Reset(ctx context.Context, chatID int64) error
}

type Bot struct {
	api       *tgbotapi.BotAPI
	log       *slog.Logger
	states    States
	svc       Service
	adminChat int64
	allowed   map[int64]bool
}

// New: пустой allowedUsers пускает всех; админ проходит всегда.
func New(api *tgbotapi.BotAPI, log *slog.Logger, states States, svc Service, adminChatID int64, allowedUsers []int64) *Bot {
	allowed := make(map[int64]bool, len(allowedUsers))
	for _, id := range allowedUsers {
		allowed[id] = true
	}
	return &Bot{api: api, log: log, states: states, svc: svc, adminChat: adminChatID, allowed: allowed}
}

func (b *Bot) Run(ctx context.Context, timeoutSec int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSec
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message != nil {
				b.onMessage(ctx, upd)
			} else if upd.CallbackQuery != nil {
				b.onCallback(ctx, upd)
			}
		}
	}
}

func (b *Bot) isAllowed(userID int64) bool {
	if userID == b.adminChat || len(b.allowed) == 0 {
		return true
	}
	return b.allowed[userID]
}

func actor(userID int64) string { return "tg:" + strconv.FormatInt(userID, 10) }

func (b *Bot) onMessage(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg.From == nil || !b.isAllowed(msg.From.ID) {
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "Acceso denegado."))
		return
	}
	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, msg)
	case msg.Document != nil:
		b.handleDocument(ctx, msg)
	default:
		b.handleStateMessage(ctx, msg)
	}
}

func (b *Bot) onCallback(ctx context.Context, upd tgbotapi.Update) {
	cb := upd.CallbackQuery
	if cb.Message == nil {
		return
	}
	if !b.isAllowed(cb.From.ID) {
		_ = b.answerCallback(cb, "Acceso denegado", true)
		return
	}
	b.handleCallback(ctx, cb)
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send failed", "err", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) answerCallback(cb *tgbotapi.CallbackQuery, text string, alert bool) error {
	resp := tgbotapi.NewCallback(cb.ID, text)
	resp.ShowAlert = alert
	_, err := b.api.Request(resp)
	return err
}

func (b *Bot) editTextAndClear(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(
		chatID, messageID, text,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}},
	)
	b.send(edit)
}

// setState: ошибка хранилища только логируется, пользователь увидит её на следующем шаге.
func (b *Bot) setState(ctx context.Context, chatID int64, st dialog.State, p dialog.Payload) {
	if err := b.states.Set(ctx, chatID, st, p); err != nil {
		b.log.Error("dialog state save failed", "chat_id", chatID, "state", st, "err", err)
	}
}

func (b *Bot) resetState(ctx context.Context, chatID int64) {
	if err := b.states.Reset(ctx, chatID); err != nil {
		b.log.Error("dialog state reset failed", "chat_id", chatID, "err", err)
	}
}

// downloadTelegramFile скачивает файл по FileID через Telegram API.
func (b *Bot) downloadTelegramFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram returned status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}
