package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/Spok95/stock-bot/internal/domain/journal"
	"github.com/Spok95/stock-bot/internal/domain/stock"
	"github.com/Spok95/stock-bot/internal/domain/transfers"
	"github.com/Spok95/stock-bot/internal/notify"
)

type Transferer interface {
	CreateTransfer(ctx context.Context, origin, dest string, lines []stock.TransferLine) (*transfers.TransferResult, error)
}

type Receiver interface {
	CreateEntry(ctx context.Context, warehouse string, lines []stock.EntryLine) (*transfers.EntryResult, error)
}

type Verifier interface {
	Verify(ctx context.Context, pickingID int64, maxAttempts int, delay time.Duration) transfers.VerifyResult
}

type Checker interface {
	Check(ctx context.Context, code, warehouseName string, qty float64) (stock.Availability, error)
}

// Catalog — справочники Odoo для клавиатур, шаблонов и истории.
type Catalog interface {
	ListWarehouses(ctx context.Context) ([]stock.Warehouse, error)
	ListProducts(ctx context.Context) ([]stock.Product, error)
	ListRecentTransfers(ctx context.Context, limit int) ([]stock.TransferSummary, error)
}

type Journal interface {
	Insert(ctx context.Context, e *journal.Entry) error
}

type Metrics interface {
	ObserveOperation(kind, status string)
	ObserveNotification(driver string, err error)
	ObserveVerify(attempts int)
}

type Deps struct {
	Transfers Transferer
	Entries   Receiver
	Verifier  Verifier
	Checker   Checker
	Catalog   Catalog
	Journal   Journal
	Notifier  notify.Notifier
	Metrics   Metrics
	Log       *slog.Logger
}

type Config struct {
	VerifyAttempts int
	VerifyDelay    time.Duration
	Group          string
	NotifyDriver   string
	HistoryLimit   int
}

// Outcome — результат операции для любого интерфейса (бот, API).
// Message — ответ пользователю, Notification — текст для группы (пусто при ошибке).
// Err — ошибка операции либо *stock.PartialCompletionError при статусе pending.
type Outcome struct {
	OperationID  uuid.UUID
	Kind         journal.Kind
	Status       journal.Status
	PickingID    int64
	Reference    string
	State        stock.PickingState
	Lines        []transfers.Line
	Message      string
	Notification string
	Err          error
}

// Service — фасад над сценариями: запуск, проверка, журнал, уведомление.
type Service struct {
	d   Deps
	cfg Config
	log *slog.Logger
	bg  conc.WaitGroup
}

func New(d Deps, cfg Config) *Service {
	if d.Notifier == nil {
		d.Notifier = notify.Noop{}
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	if cfg.VerifyAttempts < 1 {
		cfg.VerifyAttempts = 1
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.NotifyDriver == "" {
		cfg.NotifyDriver = "none"
	}
	return &Service{d: d, cfg: cfg, log: log}
}

func (s *Service) Transfer(ctx context.Context, actor, origin, dest string, lines []stock.TransferLine) *Outcome {
	out := &Outcome{OperationID: uuid.New(), Kind: journal.KindTransfer}
	log := s.log.With("operation_id", out.OperationID, "kind", out.Kind, "actor", actor)

	res, err := s.d.Transfers.CreateTransfer(ctx, origin, dest, lines)
	switch {
	case res != nil && res.PickingID != 0:
		out.PickingID = res.PickingID
		out.Reference = res.Reference
		out.Lines = res.Lines
		out.Notification = res.Message()
		if err != nil {
			log.Warn("transfer step failed after picking was created", "picking_id", out.PickingID, "err", err)
		}
		s.verify(ctx, out, "Transferencia creada y validada con éxito.", "Error en la transferencia", err)
		log.Info("transfer finished", "picking_id", out.PickingID, "status", out.Status, "state", out.State)
	case err != nil:
		out.fail(err, "Error en la transferencia")
		log.Warn("transfer failed", "kind_of_error", stock.KindOf(err), "err", err)
	}

	jl := out.Lines
	if jl == nil {
		jl = transferInput(lines)
	}
	s.record(ctx, out, actor, origin, dest, jl)
	return out
}

func (s *Service) Entry(ctx context.Context, actor, warehouse string, lines []stock.EntryLine) *Outcome {
	out := &Outcome{OperationID: uuid.New(), Kind: journal.KindEntry}
	log := s.log.With("operation_id", out.OperationID, "kind", out.Kind, "actor", actor)

	res, err := s.d.Entries.CreateEntry(ctx, warehouse, lines)
	switch {
	case res != nil && res.PickingID != 0:
		out.PickingID = res.PickingID
		out.Reference = res.Reference
		out.Lines = res.Lines
		out.Notification = res.Message()
		if err != nil {
			log.Warn("entry step failed after picking was created", "picking_id", out.PickingID, "err", err)
		}
		s.verify(ctx, out, "Entrada realizada correctamente ✅.", "Error en la entrada", err)
		log.Info("entry finished", "picking_id", out.PickingID, "status", out.Status, "state", out.State)
	case err != nil:
		out.fail(err, "Error en la entrada")
		log.Warn("entry failed", "kind_of_error", stock.KindOf(err), "err", err)
	}

	jl := out.Lines
	if jl == nil {
		jl = entryInput(lines)
	}
	s.record(ctx, out, actor, "", warehouse, jl)
	return out
}

// Verify — ручная проверка picking по id с настройками по умолчанию.
func (s *Service) Verify(ctx context.Context, pickingID int64) transfers.VerifyResult {
	vr := s.d.Verifier.Verify(ctx, pickingID, s.cfg.VerifyAttempts, s.cfg.VerifyDelay)
	s.d.Metrics.ObserveVerify(vr.Attempts)
	return vr
}

func (s *Service) Availability(ctx context.Context, code, warehouse string, qty float64) (stock.Availability, error) {
	return s.d.Checker.Check(ctx, code, warehouse, qty)
}

func (s *Service) RecentTransfers(ctx context.Context) ([]stock.TransferSummary, error) {
	return s.d.Catalog.ListRecentTransfers(ctx, s.cfg.HistoryLimit)
}

func (s *Service) Warehouses(ctx context.Context) ([]stock.Warehouse, error) {
	return s.d.Catalog.ListWarehouses(ctx)
}

func (s *Service) Products(ctx context.Context) ([]stock.Product, error) {
	return s.d.Catalog.ListProducts(ctx)
}

// Group — группа, в которую уходят уведомления.
func (s *Service) Group() string { return s.cfg.Group }

// NotifyAsync отправляет уведомление в фоне. Результат получает done (может быть nil).
// На саму операцию уведомление не влияет.
func (s *Service) NotifyAsync(ctx context.Context, message string, done func(error)) {
	if message == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.bg.Go(func() {
		err := s.d.Notifier.Notify(ctx, s.cfg.Group, message)
		s.d.Metrics.ObserveNotification(s.cfg.NotifyDriver, err)
		if err != nil {
			s.log.Warn("group notification failed", "group", s.cfg.Group, "err", err)
		}
		if done != nil {
			done(err)
		}
	})
}

// Wait дожидается фоновых уведомлений (при остановке).
func (s *Service) Wait() { s.bg.Wait() }

// verify дочитывает состояние созданного picking. cause — ошибка шага после
// создания: picking мог пройти в Odoo, итог определяет проверка.
// Не done — pending; такую операцию досчитает jobs.Reconciler.
func (s *Service) verify(ctx context.Context, out *Outcome, okText, failPrefix string, cause error) {
	vr := s.Verify(ctx, out.PickingID)
	out.State = vr.State
	if out.Reference == "" {
		out.Reference = vr.Reference
	}
	ref := out.Reference
	if ref == "" {
		ref = fmt.Sprintf("ID %d", out.PickingID)
	}
	if vr.Success {
		out.Status = journal.StatusDone
		out.Message = fmt.Sprintf("%s Referencia: %s", okText, ref)
		return
	}
	out.Status = journal.StatusPending
	out.Err = vr.Err()
	if cause == nil {
		out.Message = fmt.Sprintf("%s Referencia: %s\n⚠️ %s", okText, ref, vr.Message)
		return
	}
	out.Notification = ""
	out.Message = fmt.Sprintf("%s: %s\n⚠️ %s\nNo repita la operación: el documento %s ya existe en Odoo.",
		failPrefix, stock.Message(cause), vr.Message, ref)
}

func (o *Outcome) fail(err error, prefix string) {
	o.Status = journal.StatusFailed
	o.Err = err
	o.Message = fmt.Sprintf("%s: %s", prefix, stock.Message(err))
}

func (s *Service) record(ctx context.Context, out *Outcome, actor, origin, dest string, lines []transfers.Line) {
	s.d.Metrics.ObserveOperation(string(out.Kind), string(out.Status))
	if s.d.Journal == nil {
		return
	}
	e := &journal.Entry{
		ID:          out.OperationID,
		Kind:        out.Kind,
		Actor:       actor,
		Origin:      origin,
		Destination: dest,
		PickingID:   out.PickingID,
		Reference:   out.Reference,
		Status:      out.Status,
		State:       string(out.State),
		Message:     out.Message,
		Lines:       journalLines(lines),
	}
	if err := s.d.Journal.Insert(context.WithoutCancel(ctx), e); err != nil {
		s.log.Error("journal insert failed", "operation_id", out.OperationID, "err", err)
	}
}

func journalLines(lines []transfers.Line) []journal.Line {
	out := make([]journal.Line, 0, len(lines))
	for _, l := range lines {
		jl := journal.Line{Code: l.Code, Name: l.Name, Quantity: l.Quantity}
		if !l.UnitCost.IsZero() {
			jl.UnitCost = l.UnitCost.String()
		}
		out = append(out, jl)
	}
	return out
}

func transferInput(lines []stock.TransferLine) []transfers.Line {
	out := make([]transfers.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, transfers.Line{Code: l.ProductCode, Quantity: l.Quantity})
	}
	return out
}

func entryInput(lines []stock.EntryLine) []transfers.Line {
	out := make([]transfers.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, transfers.Line{Code: l.ProductCode, Quantity: l.Quantity, UnitCost: l.UnitCost})
	}
	return out
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, string)   {}
func (nopMetrics) ObserveNotification(string, error) {}
func (nopMetrics) ObserveVerify(int)                 {}
