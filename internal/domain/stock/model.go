package stock

import (
	"time"

	"github.com/shopspring/decimal"
)

type Warehouse struct {
	ID              int64
	Name            string
	Code            string
	StockLocationID int64
}

type Product struct {
	ID            int64
	Name          string
	DefaultCode   string
	UomID         int64
	QtyAvailable  float64
	StandardPrice decimal.Decimal
	CategoryID    int64
	Type          string
}

// PickingKind — код типа операции в Odoo (stock.picking.type.code).
type PickingKind string

const (
	KindIncoming PickingKind = "incoming"
	KindInternal PickingKind = "internal"
)

type PickingState string

const (
	StateDraft     PickingState = "draft"
	StateWaiting   PickingState = "waiting"
	StateConfirmed PickingState = "confirmed"
	StateAssigned  PickingState = "assigned"
	StateDone      PickingState = "done"
	StateCancel    PickingState = "cancel"

	// StateError — не удалось прочитать состояние (только в результатах проверки).
	StateError PickingState = "error"
)

// Terminal: done и cancel больше не меняются.
func (s PickingState) Terminal() bool {
	return s == StateDone || s == StateCancel
}

type Picking struct {
	ID               int64
	Reference        string
	State            PickingState
	SourceLocationID int64
	DestLocationID   int64
	MoveLineIDs      []int64
}

type MoveLine struct {
	ID          int64
	ProductID   int64
	ReservedQty float64
	DoneQty     float64
}

type TransferLine struct {
	ProductCode string
	Quantity    int
}

type EntryLine struct {
	ProductCode string
	Quantity    int
	UnitCost    decimal.Decimal
}

// MoveSpec — одна строка stock.move при создании picking.
type MoveSpec struct {
	ProductID   int64
	ProductName string
	UomID       int64
	Quantity    float64

	// PriceUnit и DoneQuantity задаются только для приходов.
	PriceUnit    *decimal.Decimal
	DoneQuantity float64
}

type PickingSpec struct {
	PickingTypeID    int64
	SourceLocationID int64
	DestLocationID   int64
	Origin           string
	Moves            []MoveSpec
}

// TransferSummary — строка истории перемещений.
type TransferSummary struct {
	ID                   int64
	Reference            string
	Date                 time.Time
	OriginWarehouse      string
	DestinationWarehouse string
	State                PickingState
	Products             []TransferProduct
}

type TransferProduct struct {
	Code     string
	Name     string
	Quantity float64
}

type Availability struct {
	Available bool
	OnHand    float64
}
