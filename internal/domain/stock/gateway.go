package stock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/stock-bot/internal/odoo"
)

// Executor — то, что умеет выполнить execute_kw (odoo.Client).
type Executor interface {
	Execute(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error)
}

const (
	modelWarehouse   = "stock.warehouse"
	modelLocation    = "stock.location"
	modelPicking     = "stock.picking"
	modelPickingType = "stock.picking.type"
	modelMove        = "stock.move"
	modelMoveLine    = "stock.move.line"
	modelQuant       = "stock.quant"
	modelProduct     = "product.product"

	fieldReservedQty = "reserved_qty"
	fieldDoneQty     = "qty_done"

	odooDateTime = "2006-01-02 15:04:05"
)

var (
	warehouseFields = []any{"id", "name", "code", "lot_stock_id"}
	productFields   = []any{"id", "name", "default_code", "uom_id", "qty_available", "standard_price", "categ_id", "type"}
	pickingFields   = []any{"id", "name", "state", "location_id", "location_dest_id", "move_line_ids"}
)

// Gateway — типизированная обёртка над объектами Odoo. Каждый метод — один
// удалённый вызов без собственных повторов.
type Gateway struct {
	rpc Executor
}

func NewGateway(rpc Executor) *Gateway { return &Gateway{rpc: rpc} }

func domain(conds ...[]any) []any {
	out := make([]any, len(conds))
	for i, c := range conds {
		out[i] = c
	}
	return []any{out}
}

func cond(field, op string, value any) []any { return []any{field, op, value} }

func (g *Gateway) searchRead(ctx context.Context, op, model string, dom []any, kwargs map[string]any) ([]map[string]any, error) {
	res, err := g.rpc.Execute(ctx, model, "search_read", dom, kwargs)
	if err != nil {
		return nil, remoteErr(op, err)
	}
	recs, err := odoo.Records(res)
	if err != nil {
		return nil, remoteErr(op, err)
	}
	return recs, nil
}

func (g *Gateway) FindWarehouseByName(ctx context.Context, name string) (*Warehouse, error) {
	recs, err := g.searchRead(ctx, "findWarehouseByName", modelWarehouse,
		domain(cond("name", "=", name)),
		map[string]any{"fields": warehouseFields, "limit": 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, &WarehouseNotFoundError{Name: name}
	}
	w := toWarehouse(recs[0])
	return &w, nil
}

func (g *Gateway) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	recs, err := g.searchRead(ctx, "listWarehouses", modelWarehouse, domain(),
		map[string]any{"fields": warehouseFields, "order": "name"})
	if err != nil {
		return nil, err
	}
	out := make([]Warehouse, 0, len(recs))
	for _, r := range recs {
		out = append(out, toWarehouse(r))
	}
	return out, nil
}

func toWarehouse(r map[string]any) Warehouse {
	id, _ := odoo.Int64(r["id"])
	loc, _, _ := odoo.Many2One(r["lot_stock_id"])
	return Warehouse{ID: id, Name: odoo.String(r["name"]), Code: odoo.String(r["code"]), StockLocationID: loc}
}

func (g *Gateway) FindProductByCode(ctx context.Context, code string) (*Product, error) {
	recs, err := g.searchRead(ctx, "findProductByCode", modelProduct,
		domain(cond("default_code", "=", code)),
		map[string]any{"fields": productFields, "limit": 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, &ProductNotFoundError{Code: code}
	}
	p := toProduct(recs[0])
	return &p, nil
}

// ListProducts — все товары с артикулом (для шаблона прихода).
func (g *Gateway) ListProducts(ctx context.Context) ([]Product, error) {
	recs, err := g.searchRead(ctx, "listProducts", modelProduct,
		domain(cond("default_code", "!=", false)),
		map[string]any{"fields": productFields, "order": "default_code"})
	if err != nil {
		return nil, err
	}
	out := make([]Product, 0, len(recs))
	for _, r := range recs {
		out = append(out, toProduct(r))
	}
	return out, nil
}

func toProduct(r map[string]any) Product {
	id, _ := odoo.Int64(r["id"])
	uom, _, _ := odoo.Many2One(r["uom_id"])
	categ, _, _ := odoo.Many2One(r["categ_id"])
	return Product{
		ID:            id,
		Name:          odoo.String(r["name"]),
		DefaultCode:   odoo.String(r["default_code"]),
		UomID:         uom,
		QtyAvailable:  odoo.Float(r["qty_available"]),
		StandardPrice: decimal.NewFromFloat(odoo.Float(r["standard_price"])),
		CategoryID:    categ,
		Type:          odoo.String(r["type"]),
	}
}

func (g *Gateway) FindPickingTypeID(ctx context.Context, wh Warehouse, kind PickingKind) (int64, error) {
	res, err := g.rpc.Execute(ctx, modelPickingType, "search",
		domain(cond("warehouse_id", "=", wh.ID), cond("code", "=", string(kind))),
		map[string]any{"limit": 1})
	if err != nil {
		return 0, remoteErr("findPickingTypeId", err)
	}
	ids := odoo.IDs(res)
	if len(ids) == 0 {
		return 0, &NoPickingTypeError{Warehouse: wh.Name, Type: kind}
	}
	return ids[0], nil
}

// FindSupplierLocationID — первая локация с usage=supplier.
func (g *Gateway) FindSupplierLocationID(ctx context.Context) (int64, error) {
	res, err := g.rpc.Execute(ctx, modelLocation, "search",
		domain(cond("usage", "=", "supplier")),
		map[string]any{"limit": 1})
	if err != nil {
		return 0, remoteErr("findSupplierLocation", err)
	}
	ids := odoo.IDs(res)
	if len(ids) == 0 {
		return 0, &NoDefaultSourceLocationError{}
	}
	return ids[0], nil
}

// ReadStockQuantity суммирует все кванты товара в локации: остаток может быть
// разбит по партиям на несколько строк.
func (g *Gateway) ReadStockQuantity(ctx context.Context, productID, locationID int64) (float64, error) {
	recs, err := g.searchRead(ctx, "readStockQuantity", modelQuant,
		domain(cond("product_id", "=", productID), cond("location_id", "=", locationID)),
		map[string]any{"fields": []any{"quantity"}})
	if err != nil {
		return 0, err
	}
	var total float64
	for _, r := range recs {
		total += odoo.Float(r["quantity"])
	}
	return total, nil
}

func (g *Gateway) CreatePicking(ctx context.Context, spec PickingSpec) (int64, error) {
	moves := make([]any, 0, len(spec.Moves))
	for _, m := range spec.Moves {
		vals := map[string]any{
			"product_id":       m.ProductID,
			"product_uom_qty":  m.Quantity,
			"product_uom":      m.UomID,
			"name":             m.ProductName,
			"location_id":      spec.SourceLocationID,
			"location_dest_id": spec.DestLocationID,
		}
		if m.PriceUnit != nil {
			vals["price_unit"] = m.PriceUnit.InexactFloat64()
		}
		if m.DoneQuantity > 0 {
			vals["quantity_done"] = m.DoneQuantity
		}
		// (0, 0, vals) — команда "создать связанную запись"
		moves = append(moves, []any{0, 0, vals})
	}
	vals := map[string]any{
		"picking_type_id":          spec.PickingTypeID,
		"location_id":              spec.SourceLocationID,
		"location_dest_id":         spec.DestLocationID,
		"move_ids_without_package": moves,
	}
	if spec.Origin != "" {
		vals["origin"] = spec.Origin
	}
	res, err := g.rpc.Execute(ctx, modelPicking, "create", []any{vals}, nil)
	if err != nil {
		return 0, remoteErr("createPicking", err)
	}
	id, ok := odoo.Int64(res)
	if !ok {
		return 0, &RemoteCallError{Operation: "createPicking", Detail: fmt.Sprintf("unexpected reply %T", res)}
	}
	return id, nil
}

func (g *Gateway) action(ctx context.Context, op, method string, pickingID int64) error {
	_, err := g.rpc.Execute(ctx, modelPicking, method, []any{[]any{pickingID}}, nil)
	return remoteErr(op, err)
}

func (g *Gateway) ConfirmPicking(ctx context.Context, id int64) error {
	return g.action(ctx, "confirmPicking", "action_confirm", id)
}

func (g *Gateway) AssignPicking(ctx context.Context, id int64) error {
	return g.action(ctx, "assignPicking", "action_assign", id)
}

// ValidatePicking вызывает button_validate. Ответ (true или действие мастера)
// не разбирается: итоговое состояние проверяет Verifier.
func (g *Gateway) ValidatePicking(ctx context.Context, id int64) error {
	return g.action(ctx, "validatePicking", "button_validate", id)
}

func (g *Gateway) ListMoveLines(ctx context.Context, pickingID int64) ([]MoveLine, error) {
	recs, err := g.searchRead(ctx, "listMoveLines", modelMoveLine,
		domain(cond("picking_id", "=", pickingID)),
		map[string]any{"fields": []any{"id", "product_id", fieldReservedQty, fieldDoneQty}, "order": "id"})
	if err != nil {
		return nil, err
	}
	out := make([]MoveLine, 0, len(recs))
	for _, r := range recs {
		id, _ := odoo.Int64(r["id"])
		pid, _, _ := odoo.Many2One(r["product_id"])
		out = append(out, MoveLine{
			ID:          id,
			ProductID:   pid,
			ReservedQty: odoo.Float(r[fieldReservedQty]),
			DoneQty:     odoo.Float(r[fieldDoneQty]),
		})
	}
	return out, nil
}

func (g *Gateway) WriteMoveLineDoneQuantity(ctx context.Context, moveLineID int64, qty float64) error {
	_, err := g.rpc.Execute(ctx, modelMoveLine, "write",
		[]any{[]any{moveLineID}, map[string]any{fieldDoneQty: qty}}, nil)
	return remoteErr("writeMoveLineDoneQuantity", err)
}

func (g *Gateway) WriteProductStandardPrice(ctx context.Context, productID int64, cost decimal.Decimal) error {
	_, err := g.rpc.Execute(ctx, modelProduct, "write",
		[]any{[]any{productID}, map[string]any{"standard_price": cost.InexactFloat64()}}, nil)
	return remoteErr("writeProductStandardPrice", err)
}

func (g *Gateway) ReadPicking(ctx context.Context, id int64) (*Picking, error) {
	res, err := g.rpc.Execute(ctx, modelPicking, "read",
		[]any{[]any{id}}, map[string]any{"fields": pickingFields})
	if err != nil {
		return nil, remoteErr("readPicking", err)
	}
	recs, err := odoo.Records(res)
	if err != nil {
		return nil, remoteErr("readPicking", err)
	}
	if len(recs) == 0 {
		return nil, &RemoteCallError{Operation: "readPicking", Detail: fmt.Sprintf("picking %d not found", id)}
	}
	r := recs[0]
	pid, _ := odoo.Int64(r["id"])
	src, _, _ := odoo.Many2One(r["location_id"])
	dst, _, _ := odoo.Many2One(r["location_dest_id"])
	return &Picking{
		ID:               pid,
		Reference:        odoo.String(r["name"]),
		State:            PickingState(odoo.String(r["state"])),
		SourceLocationID: src,
		DestLocationID:   dst,
		MoveLineIDs:      odoo.IDs(r["move_line_ids"]),
	}, nil
}

// ListRecentTransfers — последние внутренние перемещения с товарами.
// Названия складов берутся по их основной локации, иначе остаётся имя локации.
func (g *Gateway) ListRecentTransfers(ctx context.Context, limit int) ([]TransferSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	whs, err := g.ListWarehouses(ctx)
	if err != nil {
		return nil, err
	}
	byLocation := make(map[int64]string, len(whs))
	for _, w := range whs {
		byLocation[w.StockLocationID] = w.Name
	}

	recs, err := g.searchRead(ctx, "listRecentTransfers", modelPicking,
		domain(cond("picking_type_code", "=", string(KindInternal))),
		map[string]any{
			"fields": []any{"id", "name", "date", "location_id", "location_dest_id", "state"},
			"order":  "date desc, id desc",
			"limit":  limit,
		})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}

	out := make([]TransferSummary, 0, len(recs))
	index := make(map[int64]int, len(recs))
	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		id, _ := odoo.Int64(r["id"])
		srcID, srcName, _ := odoo.Many2One(r["location_id"])
		dstID, dstName, _ := odoo.Many2One(r["location_dest_id"])
		if n, ok := byLocation[srcID]; ok {
			srcName = n
		}
		if n, ok := byLocation[dstID]; ok {
			dstName = n
		}
		date, _ := time.Parse(odooDateTime, odoo.String(r["date"]))
		index[id] = len(out)
		ids = append(ids, id)
		out = append(out, TransferSummary{
			ID:                   id,
			Reference:            odoo.String(r["name"]),
			Date:                 date,
			OriginWarehouse:      srcName,
			DestinationWarehouse: dstName,
			State:                PickingState(odoo.String(r["state"])),
		})
	}

	moves, err := g.searchRead(ctx, "listRecentTransfers", modelMove,
		domain(cond("picking_id", "in", odoo.AnyIDs(ids))),
		map[string]any{"fields": []any{"picking_id", "product_id", "product_uom_qty"}, "order": "id"})
	if err != nil {
		return nil, err
	}
	for _, m := range moves {
		pid, _, ok := odoo.Many2One(m["picking_id"])
		if !ok {
			continue
		}
		i, ok := index[pid]
		if !ok {
			continue
		}
		_, display, _ := odoo.Many2One(m["product_id"])
		code, name := splitDisplayName(display)
		out[i].Products = append(out[i].Products, TransferProduct{
			Code:     code,
			Name:     name,
			Quantity: odoo.Float(m["product_uom_qty"]),
		})
	}
	return out, nil
}

// splitDisplayName разбирает "[SKU-1] Название" на артикул и название.
func splitDisplayName(s string) (string, string) {
	if strings.HasPrefix(s, "[") {
		if end := strings.Index(s, "]"); end > 0 {
			return s[1:end], strings.TrimSpace(s[end+1:])
		}
	}
	return "", s
}
