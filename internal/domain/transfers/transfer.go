package transfers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Spok95/stock-bot/internal/domain/stock"
)

// TransferOrchestrator проводит внутреннее перемещение между складами.
type TransferOrchestrator struct {
	gw    Gateway
	avail *stock.AvailabilityChecker
	opt   options
}

func NewTransferOrchestrator(gw Gateway, opts ...Option) *TransferOrchestrator {
	return &TransferOrchestrator{
		gw:    gw,
		avail: stock.NewAvailabilityChecker(gw),
		opt:   buildOptions(opts),
	}
}

// lineCheck — товар строки и остаток на складе-источнике.
type lineCheck struct {
	idx     int
	product *stock.Product
	avail   stock.Availability
	err     error
}

// CreateTransfer создаёт, резервирует и проводит перемещение origin → dest.
// Все проверки (склады, остатки по всем строкам, товары, тип операции)
// выполняются до первого изменяющего вызова. После него откатов нет:
// непроведённый picking остаётся в Odoo и не влияет на остатки.
// Если ошибка случилась после создания picking, вместе с ней возвращается
// res с PickingID: состояние такого picking неизвестно, его нужно проверить.
func (o *TransferOrchestrator) CreateTransfer(ctx context.Context, origin, dest string, lines []stock.TransferLine) (res *TransferResult, err error) {
	ctx, span := o.opt.tracer.Start(ctx, "transfers.create_transfer",
		trace.WithAttributes(attribute.String("origin", origin), attribute.String("destination", dest)))
	defer func() { endSpan(span, err) }()

	log := o.opt.log.With("op", "transfer", "origin", origin, "destination", dest)

	merged, err := mergeTransferLines(lines)
	if err != nil {
		return nil, err
	}
	if sameName(origin, dest) {
		return nil, &stock.SameWarehouseError{Name: origin}
	}

	src, err := readWithRetry(ctx, o.opt, func(ctx context.Context) (*stock.Warehouse, error) {
		return o.gw.FindWarehouseByName(ctx, origin)
	})
	if err != nil {
		return nil, err
	}
	dst, err := readWithRetry(ctx, o.opt, func(ctx context.Context) (*stock.Warehouse, error) {
		return o.gw.FindWarehouseByName(ctx, dest)
	})
	if err != nil {
		return nil, err
	}
	if src.ID == dst.ID {
		return nil, &stock.SameWarehouseError{Name: src.Name}
	}

	checks, err := o.checkLines(ctx, src, merged)
	if err != nil {
		return nil, err
	}

	var short []stock.Shortfall
	for i, c := range checks {
		if !c.avail.Available {
			short = append(short, stock.Shortfall{
				Code:      merged[i].ProductCode,
				Requested: float64(merged[i].Quantity),
				Available: c.avail.OnHand,
			})
		}
	}
	if len(short) > 0 {
		log.Info("transfer rejected: insufficient stock", "lines", len(short))
		return nil, &stock.InsufficientStockError{Warehouse: src.Name, Lines: short}
	}

	typeID, err := readWithRetry(ctx, o.opt, func(ctx context.Context) (int64, error) {
		return o.gw.FindPickingTypeID(ctx, *src, stock.KindInternal)
	})
	if err != nil {
		return nil, err
	}

	spec := stock.PickingSpec{
		PickingTypeID:    typeID,
		SourceLocationID: src.StockLocationID,
		DestLocationID:   dst.StockLocationID,
	}
	res = &TransferResult{Origin: src.Name, Destination: dst.Name}
	for i, c := range checks {
		spec.Moves = append(spec.Moves, stock.MoveSpec{
			ProductID:   c.product.ID,
			ProductName: c.product.Name,
			UomID:       c.product.UomID,
			Quantity:    float64(merged[i].Quantity),
		})
		res.Lines = append(res.Lines, Line{Code: merged[i].ProductCode, Name: c.product.Name, Quantity: merged[i].Quantity})
	}

	// Дальше только изменяющие вызовы, без повторов.
	id, err := o.gw.CreatePicking(ctx, spec)
	if err != nil {
		return nil, err
	}
	res.PickingID = id
	span.SetAttributes(attribute.Int64("picking_id", id))
	log = log.With("picking_id", id)
	log.Info("picking created", "moves", len(spec.Moves))

	if err := o.gw.ConfirmPicking(ctx, id); err != nil {
		return res, err
	}
	if err := o.gw.AssignPicking(ctx, id); err != nil {
		return res, err
	}

	moveLines, err := o.gw.ListMoveLines(ctx, id)
	if err != nil {
		return res, err
	}
	for _, ml := range moveLines {
		// Нулевой резерв пишется как есть: picking останется не done, и это будет видно при проверке.
		if err := o.gw.WriteMoveLineDoneQuantity(ctx, ml.ID, ml.ReservedQty); err != nil {
			return res, err
		}
	}

	if err := o.gw.ValidatePicking(ctx, id); err != nil {
		return res, err
	}

	res.Reference = readReference(ctx, o.opt, o.gw, id, log)
	log.Info("transfer validated", "reference", res.Reference)
	return res, nil
}

// checkLines находит товары и остатки на складе-источнике параллельно
// (не больше opt.concurrency запросов). Результат в порядке строк.
func (o *TransferOrchestrator) checkLines(ctx context.Context, src *stock.Warehouse, lines []stock.TransferLine) ([]lineCheck, error) {
	p := pool.NewWithResults[lineCheck]().WithContext(ctx).WithMaxGoroutines(o.opt.concurrency)
	for i, l := range lines {
		p.Go(func(ctx context.Context) (lineCheck, error) {
			c := lineCheck{idx: i}
			c.product, c.err = readWithRetry(ctx, o.opt, func(ctx context.Context) (*stock.Product, error) {
				return o.gw.FindProductByCode(ctx, l.ProductCode)
			})
			if c.err != nil {
				return c, nil
			}
			c.avail, c.err = readWithRetry(ctx, o.opt, func(ctx context.Context) (stock.Availability, error) {
				return o.avail.CheckProduct(ctx, c.product.ID, src.StockLocationID, float64(l.Quantity))
			})
			return c, nil
		})
	}
	checks, err := p.Wait()
	if err != nil {
		return nil, err
	}
	sort.Slice(checks, func(a, b int) bool { return checks[a].idx < checks[b].idx })

	// Первая ошибка в порядке строк, чтобы сообщение было предсказуемым.
	for _, c := range checks {
		if c.err != nil {
			return nil, c.err
		}
	}
	return checks, nil
}

// mergeTransferLines складывает повторяющиеся артикулы, сохраняя порядок первого появления.
func mergeTransferLines(lines []stock.TransferLine) ([]stock.TransferLine, error) {
	if len(lines) == 0 {
		return nil, &stock.InvalidLineInputError{Reason: "no lines"}
	}
	out := make([]stock.TransferLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		code := strings.TrimSpace(l.ProductCode)
		if code == "" {
			return nil, &stock.InvalidLineInputError{Code: l.ProductCode, Reason: "empty product code"}
		}
		if l.Quantity <= 0 {
			return nil, &stock.InvalidLineInputError{Code: code, Reason: fmt.Sprintf("quantity must be positive, got %d", l.Quantity)}
		}
		if i, ok := index[code]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[code] = len(out)
		out = append(out, stock.TransferLine{ProductCode: code, Quantity: l.Quantity})
	}
	return out, nil
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// readReference читает номер проведённого picking. Ошибка не фатальна:
// операция уже выполнена, номер просто не попадёт в сообщение.
func readReference(ctx context.Context, o options, gw PickingReader, id int64, log *slog.Logger) string {
	p, err := readWithRetry(ctx, o, func(ctx context.Context) (*stock.Picking, error) {
		return gw.ReadPicking(ctx, id)
	})
	if err != nil {
		log.Warn("read picking reference failed", "err", err)
		return ""
	}
	return p.Reference
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.kind", string(stock.KindOf(err))))
		if !errors.Is(err, context.Canceled) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
