package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/stock-bot/internal/dialog"
	"github.com/Spok95/stock-bot/internal/domain/stock"
	"github.com/Spok95/stock-bot/internal/operations"
)

const helpText = `Comandos:
/traspaso — transferir productos entre almacenes
/entrada — registrar una entrada de proveedor
/plantilla — descargar la plantilla Excel de entrada
/stock CODIGO [CANTIDAD] BODEGA — consultar disponibilidad
/historial — últimas transferencias
/historial_xlsx — últimas transferencias en Excel
/verificar ID — comprobar el estado de una transferencia
/cancelar — cancelar la operación en curso`

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		m := tgbotapi.NewMessage(chatID, helpText)
		m.ReplyMarkup = mainReplyKeyboard()
		b.send(m)

	case "traspaso":
		b.startTransfer(ctx, chatID)

	case "entrada":
		b.startEntry(ctx, chatID)

	case "plantilla":
		b.sendTemplate(ctx, chatID)

	case "stock":
		b.checkStock(ctx, chatID, msg.CommandArguments())

	case "historial":
		b.showHistory(ctx, chatID)

	case "historial_xlsx":
		b.exportHistory(ctx, chatID)

	case "verificar":
		b.verifyPicking(ctx, chatID, msg.CommandArguments())

	case "cancelar":
		b.resetState(ctx, chatID)
		b.reply(chatID, "Operación cancelada.")

	default:
		b.reply(chatID, "Comando desconocido. Escriba /help")
	}
}

func (b *Bot) handleStateMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	// Нижняя панель
	switch msg.Text {
	case btnTransfer:
		b.startTransfer(ctx, chatID)
		return
	case btnEntry:
		b.startEntry(ctx, chatID)
		return
	case btnHistory:
		b.showHistory(ctx, chatID)
		return
	case btnTemplate:
		b.sendTemplate(ctx, chatID)
		return
	}

	st, err := b.states.Get(ctx, chatID)
	if err != nil {
		b.log.Error("dialog state load failed", "chat_id", chatID, "err", err)
		b.reply(chatID, "Error interno, intente de nuevo.")
		return
	}
	switch st.State {
	case dialog.StateTrLines:
		b.acceptTransferLines(ctx, chatID, st.Payload, msg.Text)
	case dialog.StateEnLines:
		b.acceptEntryLines(ctx, chatID, st.Payload, msg.Text)
	case dialog.StateTrOrigin, dialog.StateTrDest, dialog.StateEnWarehouse:
		b.reply(chatID, "Seleccione el almacén con los botones.")
	case dialog.StateTrConfirm, dialog.StateEnConfirm:
		b.reply(chatID, "Confirme o cancele con los botones.")
	default:
		b.reply(chatID, "Escriba /help para ver los comandos.")
	}
}

// handleDocument принимает Excel вместо текстовых строк.
func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	st, err := b.states.Get(ctx, chatID)
	if err != nil || (st.State != dialog.StateTrLines && st.State != dialog.StateEnLines) {
		b.reply(chatID, "Envíe el archivo después de /traspaso o /entrada, en el paso de productos.")
		return
	}
	if !strings.HasSuffix(strings.ToLower(msg.Document.FileName), ".xlsx") {
		b.reply(chatID, "Se esperaba un archivo .xlsx.")
		return
	}
	data, err := b.downloadTelegramFile(ctx, msg.Document.FileID)
	if err != nil {
		b.log.Error("download document failed", "chat_id", chatID, "err", err)
		b.reply(chatID, "No se pudo descargar el archivo.")
		return
	}

	withCost := st.State == dialog.StateEnLines
	text, err := linesFromXLSX(data, withCost)
	if err != nil {
		b.reply(chatID, "Error en el archivo: "+err.Error())
		return
	}
	if withCost {
		b.acceptEntryLines(ctx, chatID, st.Payload, text)
		return
	}
	b.acceptTransferLines(ctx, chatID, st.Payload, text)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID

	if data == "nav:cancel" {
		b.resetState(ctx, chatID)
		b.editTextAndClear(chatID, msgID, "Operación cancelada.")
		_ = b.answerCallback(cb, "Cancelado", false)
		return
	}
	_ = b.answerCallback(cb, "", false)

	st, err := b.states.Get(ctx, chatID)
	if err != nil {
		b.log.Error("dialog state load failed", "chat_id", chatID, "err", err)
		return
	}

	switch {
	case strings.HasPrefix(data, "tr:origin:") && st.State == dialog.StateTrOrigin:
		w, ok := b.pickWarehouse(ctx, chatID, msgID, strings.TrimPrefix(data, "tr:origin:"))
		if !ok {
			return
		}
		ws, err := b.svc.Warehouses(ctx)
		if err != nil {
			b.editTextAndClear(chatID, msgID, stock.Message(err))
			return
		}
		b.setState(ctx, chatID, dialog.StateTrDest, dialog.Payload{dialog.KeyOrigin: w.Name})
		b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID,
			fmt.Sprintf("Origen: %s\nSeleccione el almacén de destino:", w.Name),
			warehouseKeyboard(ws, "tr:dest", w.ID)))

	case strings.HasPrefix(data, "tr:dest:") && st.State == dialog.StateTrDest:
		w, ok := b.pickWarehouse(ctx, chatID, msgID, strings.TrimPrefix(data, "tr:dest:"))
		if !ok {
			return
		}
		origin, _ := dialog.GetString(st.Payload, dialog.KeyOrigin)
		b.setState(ctx, chatID, dialog.StateTrLines, st.Payload.With(dialog.KeyDest, w.Name))
		b.editTextAndClear(chatID, msgID, fmt.Sprintf(
			"%s ▶ %s\nEnvíe los productos, uno por línea: CODIGO CANTIDAD\nTambién puede enviar la plantilla Excel.", origin, w.Name))

	case data == "tr:confirm" && st.State == dialog.StateTrConfirm:
		b.runTransfer(ctx, cb, st.Payload)

	case strings.HasPrefix(data, "en:wh:") && st.State == dialog.StateEnWarehouse:
		w, ok := b.pickWarehouse(ctx, chatID, msgID, strings.TrimPrefix(data, "en:wh:"))
		if !ok {
			return
		}
		b.setState(ctx, chatID, dialog.StateEnLines, dialog.Payload{dialog.KeyWarehouse: w.Name})
		b.editTextAndClear(chatID, msgID, fmt.Sprintf(
			"Entrada a %s\nEnvíe los productos, uno por línea: CODIGO CANTIDAD COSTO\nO envíe la plantilla Excel (/plantilla).", w.Name))

	case data == "en:confirm" && st.State == dialog.StateEnConfirm:
		b.runEntry(ctx, cb, st.Payload)

	default:
		// устаревшая кнопка из прошлого диалога
		b.editTextAndClear(chatID, msgID, "Esta acción ya no está disponible.")
	}
}

func (b *Bot) startTransfer(ctx context.Context, chatID int64) {
	ws, err := b.svc.Warehouses(ctx)
	if err != nil {
		b.reply(chatID, stock.Message(err))
		return
	}
	b.setState(ctx, chatID, dialog.StateTrOrigin, dialog.Payload{})
	m := tgbotapi.NewMessage(chatID, "Seleccione el almacén de origen:")
	m.ReplyMarkup = warehouseKeyboard(ws, "tr:origin", 0)
	b.send(m)
}

func (b *Bot) startEntry(ctx context.Context, chatID int64) {
	ws, err := b.svc.Warehouses(ctx)
	if err != nil {
		b.reply(chatID, stock.Message(err))
		return
	}
	b.setState(ctx, chatID, dialog.StateEnWarehouse, dialog.Payload{})
	m := tgbotapi.NewMessage(chatID, "Seleccione el almacén de la entrada:")
	m.ReplyMarkup = warehouseKeyboard(ws, "en:wh", 0)
	b.send(m)
}

// pickWarehouse находит склад по id из callback.
func (b *Bot) pickWarehouse(ctx context.Context, chatID int64, msgID int, raw string) (stock.Warehouse, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return stock.Warehouse{}, false
	}
	ws, err := b.svc.Warehouses(ctx)
	if err != nil {
		b.editTextAndClear(chatID, msgID, stock.Message(err))
		return stock.Warehouse{}, false
	}
	for _, w := range ws {
		if w.ID == id {
			return w, true
		}
	}
	b.editTextAndClear(chatID, msgID, "El almacén ya no existe en Odoo.")
	return stock.Warehouse{}, false
}

func (b *Bot) acceptTransferLines(ctx context.Context, chatID int64, p dialog.Payload, text string) {
	lines, err := parseTransferLines(text)
	if err != nil {
		b.reply(chatID, "Error: "+err.Error())
		return
	}
	origin, _ := dialog.GetString(p, dialog.KeyOrigin)
	dest, _ := dialog.GetString(p, dialog.KeyDest)
	b.setState(ctx, chatID, dialog.StateTrConfirm, p.With(dialog.KeyLines, text))
	m := tgbotapi.NewMessage(chatID, transferSummary(origin, dest, lines))
	m.ReplyMarkup = confirmKeyboard("tr:confirm")
	b.send(m)
}

func (b *Bot) acceptEntryLines(ctx context.Context, chatID int64, p dialog.Payload, text string) {
	lines, err := parseEntryLines(text)
	if err != nil {
		b.reply(chatID, "Error: "+err.Error())
		return
	}
	wh, _ := dialog.GetString(p, dialog.KeyWarehouse)
	b.setState(ctx, chatID, dialog.StateEnConfirm, p.With(dialog.KeyLines, text))
	m := tgbotapi.NewMessage(chatID, entrySummary(wh, lines))
	m.ReplyMarkup = confirmKeyboard("en:confirm")
	b.send(m)
}

func (b *Bot) runTransfer(ctx context.Context, cb *tgbotapi.CallbackQuery, p dialog.Payload) {
	chatID := cb.Message.Chat.ID
	origin, _ := dialog.GetString(p, dialog.KeyOrigin)
	dest, _ := dialog.GetString(p, dialog.KeyDest)
	text, _ := dialog.GetString(p, dialog.KeyLines)
	lines, err := parseTransferLines(text)
	if err != nil {
		b.resetState(ctx, chatID)
		b.editTextAndClear(chatID, cb.Message.MessageID, "Error: "+err.Error())
		return
	}

	b.resetState(ctx, chatID)
	b.editTextAndClear(chatID, cb.Message.MessageID, "Procesando traspaso…")
	out := b.svc.Transfer(ctx, actor(cb.From.ID), origin, dest, lines)
	b.finish(ctx, chatID, out)
}

func (b *Bot) runEntry(ctx context.Context, cb *tgbotapi.CallbackQuery, p dialog.Payload) {
	chatID := cb.Message.Chat.ID
	wh, _ := dialog.GetString(p, dialog.KeyWarehouse)
	text, _ := dialog.GetString(p, dialog.KeyLines)
	lines, err := parseEntryLines(text)
	if err != nil {
		b.resetState(ctx, chatID)
		b.editTextAndClear(chatID, cb.Message.MessageID, "Error: "+err.Error())
		return
	}

	b.resetState(ctx, chatID)
	b.editTextAndClear(chatID, cb.Message.MessageID, "Procesando entrada…")
	out := b.svc.Entry(ctx, actor(cb.From.ID), wh, lines)
	b.finish(ctx, chatID, out)
}

// finish отправляет итог и, если операция прошла, уведомление в группу.
// Статус уведомления приходит отдельным сообщением.
func (b *Bot) finish(ctx context.Context, chatID int64, out *operations.Outcome) {
	b.reply(chatID, out.Message)
	if out.Notification == "" {
		return
	}
	group := b.svc.Group()
	b.svc.NotifyAsync(ctx, out.Notification, func(err error) {
		if err != nil {
			b.reply(chatID, fmt.Sprintf("⚠️ No se pudo enviar la notificación a %s: %v", group, err))
			return
		}
		b.reply(chatID, fmt.Sprintf("Notificación enviada a %s.", group))
	})
}

func (b *Bot) sendTemplate(ctx context.Context, chatID int64) {
	products, err := b.svc.Products(ctx)
	if err != nil {
		b.reply(chatID, stock.Message(err))
		return
	}
	data, err := entryTemplate(products)
	if err != nil {
		b.log.Error("build template failed", "err", err)
		b.reply(chatID, "Error al generar la plantilla.")
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("plantilla_entrada_%s.xlsx", time.Now().Format("20060102")),
		Bytes: data,
	})
	doc.Caption = "Complete las columnas «cantidad» y «costo_unitario» y envíe el archivo en /entrada o /traspaso."
	b.send(doc)
}

func (b *Bot) checkStock(ctx context.Context, chatID int64, args string) {
	code, qty, wh, err := parseStockArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	av, err := b.svc.Availability(ctx, code, wh, qty)
	if err != nil {
		b.reply(chatID, stock.Message(err))
		return
	}
	b.reply(chatID, availabilityText(code, wh, qty, av))
}

func (b *Bot) showHistory(ctx context.Context, chatID int64) {
	list, err := b.svc.RecentTransfers(ctx)
	if err != nil {
		b.reply(chatID, stock.Message(err))
		return
	}
	b.reply(chatID, formatHistory(list))
}

func (b *Bot) exportHistory(ctx context.Context, chatID int64) {
	list, err := b.svc.RecentTransfers(ctx)
	if err != nil {
		b.reply(chatID, stock.Message(err))
		return
	}
	data, err := historyXLSX(list)
	if err != nil {
		b.log.Error("build history xlsx failed", "err", err)
		b.reply(chatID, "Error al generar el archivo.")
		return
	}
	b.send(tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("transferencias_%s.xlsx", time.Now().Format("20060102_150405")),
		Bytes: data,
	}))
}

func (b *Bot) verifyPicking(ctx context.Context, chatID int64, args string) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil || id <= 0 {
		b.reply(chatID, "Uso: /verificar ID")
		return
	}
	vr := b.svc.Verify(ctx, id)
	b.reply(chatID, vr.Message)
}
