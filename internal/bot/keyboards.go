package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/stock-bot/internal/domain/stock"
)

func navKeyboard(cancel bool) tgbotapi.InlineKeyboardMarkup {
	row := []tgbotapi.InlineKeyboardButton{}
	if cancel {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("✖️ Cancelar", "nav:cancel"))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// warehouseKeyboard: по кнопке на склад, склад exclude пропускается.
// В callback уходит id склада: имя может не влезть в 64 байта.
func warehouseKeyboard(ws []stock.Warehouse, prefix string, exclude int64) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{}
	for _, w := range ws {
		if w.ID == exclude {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(w.Name, fmt.Sprintf("%s:%d", prefix, w.ID)),
		))
	}
	rows = append(rows, navKeyboard(true).InlineKeyboard[0])
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func confirmKeyboard(action string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirmar", action),
		),
		navKeyboard(true).InlineKeyboard[0],
	)
}

// mainReplyKeyboard — нижняя панель.
func mainReplyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]tgbotapi.KeyboardButton{
			{tgbotapi.NewKeyboardButton(btnTransfer), tgbotapi.NewKeyboardButton(btnEntry)},
			{tgbotapi.NewKeyboardButton(btnHistory), tgbotapi.NewKeyboardButton(btnTemplate)},
		},
	}
}

const (
	btnTransfer = "Traspaso"
	btnEntry    = "Entrada"
	btnHistory  = "Historial"
	btnTemplate = "Plantilla"
)
