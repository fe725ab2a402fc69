package transfers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Spok95/stock-bot/internal/domain/stock"
)

type priceWrite struct {
	ProductID int64
	Cost      decimal.Decimal
}

// fakeGateway — Odoo в памяти; запоминает порядок вызовов.
type fakeGateway struct {
	mu sync.Mutex

	warehouses   map[string]stock.Warehouse
	products     map[string]stock.Product
	quants       map[[2]int64]float64
	pickingTypes map[string]int64
	supplierLoc  int64

	// reserved переопределяет резерв по товару; по умолчанию резервируется всё.
	reserved map[int64]float64
	states   []stock.PickingState
	readErrs []error

	// failOnce: первый вызов метода вернёт ошибку, следующие пройдут.
	failOnce map[string]error
	fail     map[string]error

	calls       []string
	created     []stock.PickingSpec
	doneWrites  map[int64]float64
	priceWrites []priceWrite
	reads       int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		warehouses: map[string]stock.Warehouse{
			"Bodega": {ID: 1, Name: "Bodega", Code: "BOD", StockLocationID: 8},
			"Visto":  {ID: 2, Name: "Visto", Code: "VIS", StockLocationID: 18},
		},
		products: map[string]stock.Product{
			"SKU-1": {ID: 40, Name: "Tornillo", DefaultCode: "SKU-1", UomID: 1, QtyAvailable: 5, StandardPrice: decimal.NewFromInt(100)},
		},
		quants: map[[2]int64]float64{{40, 8}: 5},
		pickingTypes: map[string]int64{
			"1/internal": 11, "1/incoming": 12,
			"2/internal": 21, "2/incoming": 22,
		},
		supplierLoc: 4,
		states:      []stock.PickingState{stock.StateDone},
		failOnce:    map[string]error{},
		fail:        map[string]error{},
		doneWrites:  map[int64]float64{},
	}
}

func (f *fakeGateway) addProduct(code string, id int64, onHand float64) {
	f.products[code] = stock.Product{ID: id, Name: "Producto " + code, DefaultCode: code, UomID: 1, QtyAvailable: onHand, StandardPrice: decimal.NewFromInt(10)}
	f.quants[[2]int64{id, 8}] = onHand
}

func (f *fakeGateway) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if err, ok := f.failOnce[name]; ok {
		delete(f.failOnce, name)
		return err
	}
	return f.fail[name]
}

func (f *fakeGateway) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeGateway) count(name string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

// mutations — вызовы create/write/действия над picking.
func (f *fakeGateway) mutations() []string {
	var out []string
	for _, c := range f.Calls() {
		for _, p := range []string{"Create", "Write", "Confirm", "Assign", "Validate"} {
			if strings.HasPrefix(c, p) {
				out = append(out, c)
			}
		}
	}
	return out
}

func failure(op string) error {
	return &stock.RemoteCallError{Operation: op, Detail: "connection reset", Err: errors.New("connection reset")}
}

func (f *fakeGateway) FindWarehouseByName(_ context.Context, name string) (*stock.Warehouse, error) {
	if err := f.record("FindWarehouseByName"); err != nil {
		return nil, err
	}
	w, ok := f.warehouses[name]
	if !ok {
		return nil, &stock.WarehouseNotFoundError{Name: name}
	}
	return &w, nil
}

func (f *fakeGateway) FindProductByCode(_ context.Context, code string) (*stock.Product, error) {
	if err := f.record("FindProductByCode"); err != nil {
		return nil, err
	}
	p, ok := f.products[code]
	if !ok {
		return nil, &stock.ProductNotFoundError{Code: code}
	}
	return &p, nil
}

func (f *fakeGateway) FindPickingTypeID(_ context.Context, wh stock.Warehouse, kind stock.PickingKind) (int64, error) {
	if err := f.record("FindPickingTypeID"); err != nil {
		return 0, err
	}
	id, ok := f.pickingTypes[fmt.Sprintf("%d/%s", wh.ID, kind)]
	if !ok {
		return 0, &stock.NoPickingTypeError{Warehouse: wh.Name, Type: kind}
	}
	return id, nil
}

func (f *fakeGateway) FindSupplierLocationID(context.Context) (int64, error) {
	if err := f.record("FindSupplierLocationID"); err != nil {
		return 0, err
	}
	if f.supplierLoc == 0 {
		return 0, &stock.NoDefaultSourceLocationError{}
	}
	return f.supplierLoc, nil
}

func (f *fakeGateway) ReadStockQuantity(_ context.Context, productID, locationID int64) (float64, error) {
	if err := f.record("ReadStockQuantity"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quants[[2]int64{productID, locationID}], nil
}

func (f *fakeGateway) CreatePicking(_ context.Context, spec stock.PickingSpec) (int64, error) {
	if err := f.record("CreatePicking"); err != nil {
		return 0, err
	}
	f.created = append(f.created, spec)
	return 900 + int64(len(f.created)), nil
}

func (f *fakeGateway) ConfirmPicking(context.Context, int64) error { return f.record("ConfirmPicking") }
func (f *fakeGateway) AssignPicking(context.Context, int64) error  { return f.record("AssignPicking") }
func (f *fakeGateway) ValidatePicking(context.Context, int64) error {
	return f.record("ValidatePicking")
}

func (f *fakeGateway) ListMoveLines(context.Context, int64) ([]stock.MoveLine, error) {
	if err := f.record("ListMoveLines"); err != nil {
		return nil, err
	}
	spec := f.created[len(f.created)-1]
	out := make([]stock.MoveLine, 0, len(spec.Moves))
	for i, m := range spec.Moves {
		r := m.Quantity
		if v, ok := f.reserved[m.ProductID]; ok {
			r = v
		}
		out = append(out, stock.MoveLine{ID: int64(100 + i), ProductID: m.ProductID, ReservedQty: r})
	}
	return out, nil
}

func (f *fakeGateway) WriteMoveLineDoneQuantity(_ context.Context, id int64, qty float64) error {
	if err := f.record("WriteMoveLineDoneQuantity"); err != nil {
		return err
	}
	f.doneWrites[id] = qty
	return nil
}

func (f *fakeGateway) WriteProductStandardPrice(_ context.Context, productID int64, cost decimal.Decimal) error {
	if err := f.record("WriteProductStandardPrice"); err != nil {
		return err
	}
	f.priceWrites = append(f.priceWrites, priceWrite{ProductID: productID, Cost: cost})
	return nil
}

func (f *fakeGateway) ReadPicking(_ context.Context, id int64) (*stock.Picking, error) {
	if err := f.record("ReadPicking"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.reads
	f.reads++
	if n < len(f.readErrs) && f.readErrs[n] != nil {
		return nil, f.readErrs[n]
	}
	st := f.states[len(f.states)-1]
	if n < len(f.states) {
		st = f.states[n]
	}
	return &stock.Picking{ID: id, Reference: fmt.Sprintf("BOD/INT/%05d", id), State: st}, nil
}
