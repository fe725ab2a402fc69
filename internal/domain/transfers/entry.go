package transfers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Spok95/stock-bot/internal/domain/stock"
)

// EntryOrchestrator оформляет приход от поставщика на склад и пересчитывает
// среднюю себестоимость товаров.
type EntryOrchestrator struct {
	gw  Gateway
	opt options
}

func NewEntryOrchestrator(gw Gateway, opts ...Option) *EntryOrchestrator {
	return &EntryOrchestrator{gw: gw, opt: buildOptions(opts)}
}

// CreateEntry проводит приход. Строки проверяются целиком до любого вызова Odoo.
// Себестоимость записывается в товар сразу после расчёта по каждой строке и
// не откатывается, если следующий шаг упадёт.
// Ошибка после создания picking возвращается вместе с res (PickingID заполнен).
func (o *EntryOrchestrator) CreateEntry(ctx context.Context, warehouse string, lines []stock.EntryLine) (res *EntryResult, err error) {
	ctx, span := o.opt.tracer.Start(ctx, "transfers.create_entry",
		trace.WithAttributes(attribute.String("warehouse", warehouse)))
	defer func() { endSpan(span, err) }()

	log := o.opt.log.With("op", "entry", "warehouse", warehouse)

	lines, err = validateEntryLines(lines)
	if err != nil {
		return nil, err
	}

	wh, err := readWithRetry(ctx, o.opt, func(ctx context.Context) (*stock.Warehouse, error) {
		return o.gw.FindWarehouseByName(ctx, warehouse)
	})
	if err != nil {
		return nil, err
	}
	typeID, err := readWithRetry(ctx, o.opt, func(ctx context.Context) (int64, error) {
		return o.gw.FindPickingTypeID(ctx, *wh, stock.KindIncoming)
	})
	if err != nil {
		return nil, err
	}
	srcLoc, err := o.supplierLocation(ctx)
	if err != nil {
		return nil, err
	}

	products, err := o.resolveProducts(ctx, lines)
	if err != nil {
		return nil, err
	}

	spec := stock.PickingSpec{
		PickingTypeID:    typeID,
		SourceLocationID: srcLoc,
		DestLocationID:   wh.StockLocationID,
	}
	res = &EntryResult{Warehouse: wh.Name}
	for i, l := range lines {
		p := products[i]
		newCost, err := stock.AverageCost(
			decimal.NewFromFloat(p.QtyAvailable), p.StandardPrice,
			decimal.NewFromInt(int64(l.Quantity)), l.UnitCost)
		if err != nil {
			return nil, err
		}
		newCost = newCost.Round(4)
		if err := o.gw.WriteProductStandardPrice(ctx, p.ID, newCost); err != nil {
			if i > 0 {
				log.Warn("cost write failed after earlier lines were updated", "code", l.ProductCode, "updated", i)
			}
			return nil, err
		}
		log.Debug("standard price updated", "code", l.ProductCode, "old", p.StandardPrice.String(), "new", newCost.String())

		price := l.UnitCost
		spec.Moves = append(spec.Moves, stock.MoveSpec{
			ProductID:    p.ID,
			ProductName:  p.Name,
			UomID:        p.UomID,
			Quantity:     float64(l.Quantity),
			PriceUnit:    &price,
			DoneQuantity: float64(l.Quantity),
		})
		res.Lines = append(res.Lines, Line{
			Code:     l.ProductCode,
			Name:     p.Name,
			Quantity: l.Quantity,
			UnitCost: l.UnitCost,
			NewCost:  newCost,
		})
	}

	id, err := o.gw.CreatePicking(ctx, spec)
	if err != nil {
		return nil, err
	}
	res.PickingID = id
	span.SetAttributes(attribute.Int64("picking_id", id))
	log = log.With("picking_id", id)
	log.Info("receipt created", "moves", len(spec.Moves))

	if err := o.gw.ConfirmPicking(ctx, id); err != nil {
		return res, err
	}
	if err := o.gw.AssignPicking(ctx, id); err != nil {
		return res, err
	}
	if err := o.gw.ValidatePicking(ctx, id); err != nil {
		return res, err
	}

	res.Reference = readReference(ctx, o.opt, o.gw, id, log)
	log.Info("receipt validated", "reference", res.Reference)
	return res, nil
}

func (o *EntryOrchestrator) supplierLocation(ctx context.Context) (int64, error) {
	id, err := readWithRetry(ctx, o.opt, o.gw.FindSupplierLocationID)
	if err == nil {
		return id, nil
	}
	if stock.KindOf(err) == stock.KindNoDefaultSourceLocation && o.opt.supplierFallback > 0 {
		o.opt.log.Warn("no supplier location in odoo, using fallback", "location_id", o.opt.supplierFallback)
		return o.opt.supplierFallback, nil
	}
	return 0, err
}

type resolved struct {
	idx     int
	product *stock.Product
	err     error
}

// resolveProducts находит все товары до первой записи себестоимости,
// так что неизвестный артикул не оставляет частично обновлённых цен.
func (o *EntryOrchestrator) resolveProducts(ctx context.Context, lines []stock.EntryLine) ([]*stock.Product, error) {
	p := pool.NewWithResults[resolved]().WithContext(ctx).WithMaxGoroutines(o.opt.concurrency)
	for i, l := range lines {
		p.Go(func(ctx context.Context) (resolved, error) {
			prod, err := readWithRetry(ctx, o.opt, func(ctx context.Context) (*stock.Product, error) {
				return o.gw.FindProductByCode(ctx, l.ProductCode)
			})
			return resolved{idx: i, product: prod, err: err}, nil
		})
	}
	rs, err := p.Wait()
	if err != nil {
		return nil, err
	}
	sort.Slice(rs, func(a, b int) bool { return rs[a].idx < rs[b].idx })

	out := make([]*stock.Product, len(rs))
	for i, r := range rs {
		if r.err != nil {
			return nil, r.err
		}
		out[i] = r.product
	}
	return out, nil
}

// validateEntryLines не делает удалённых вызовов: любая плохая строка
// отменяет весь приход.
func validateEntryLines(lines []stock.EntryLine) ([]stock.EntryLine, error) {
	if len(lines) == 0 {
		return nil, &stock.InvalidLineInputError{Reason: "no lines"}
	}
	out := make([]stock.EntryLine, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		code := strings.TrimSpace(l.ProductCode)
		switch {
		case code == "":
			return nil, &stock.InvalidLineInputError{Code: l.ProductCode, Reason: "empty product code"}
		case l.Quantity <= 0:
			return nil, &stock.InvalidLineInputError{Code: code, Reason: fmt.Sprintf("quantity must be positive, got %d", l.Quantity)}
		case !l.UnitCost.IsPositive():
			return nil, &stock.InvalidLineInputError{Code: code, Reason: fmt.Sprintf("cost must be positive, got %s", l.UnitCost)}
		case seen[code]:
			// у строк может быть разная цена, средняя по ним неоднозначна
			return nil, &stock.InvalidLineInputError{Code: code, Reason: "duplicated product code"}
		}
		seen[code] = true
		l.ProductCode = code
		out = append(out, l)
	}
	return out, nil
}
