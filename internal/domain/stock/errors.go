package stock

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Spok95/stock-bot/internal/odoo"
)

// Kind — вид ошибки. UI выбирает текст и реакцию по Kind, а не по строке сообщения.
type Kind string

const (
	KindUnknown                 Kind = "unknown"
	KindWarehouseNotFound       Kind = "warehouse_not_found"
	KindProductNotFound         Kind = "product_not_found"
	KindNoPickingType           Kind = "no_picking_type"
	KindNoDefaultSourceLocation Kind = "no_default_source_location"
	KindSameWarehouse           Kind = "same_warehouse"
	KindInsufficientStock       Kind = "insufficient_stock"
	KindInvalidLineInput        Kind = "invalid_line_input"
	KindInvalidCostInput        Kind = "invalid_cost_input"
	KindRemoteCallFailed        Kind = "remote_call_failed"
	KindAuthenticationExpired   Kind = "authentication_expired"
	KindPartialCompletion       Kind = "partial_completion"
)

type kinded interface {
	Kind() Kind
}

// KindOf достаёт вид ошибки из цепочки; nil даёт "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

type WarehouseNotFoundError struct{ Name string }

func (e *WarehouseNotFoundError) Error() string { return fmt.Sprintf("warehouse %q not found", e.Name) }
func (e *WarehouseNotFoundError) Kind() Kind    { return KindWarehouseNotFound }

type ProductNotFoundError struct{ Code string }

func (e *ProductNotFoundError) Error() string { return fmt.Sprintf("product %q not found", e.Code) }
func (e *ProductNotFoundError) Kind() Kind    { return KindProductNotFound }

type NoPickingTypeError struct {
	Warehouse string
	Type      PickingKind
}

func (e *NoPickingTypeError) Error() string {
	return fmt.Sprintf("no %s picking type for warehouse %q", e.Type, e.Warehouse)
}
func (e *NoPickingTypeError) Kind() Kind { return KindNoPickingType }

type NoDefaultSourceLocationError struct{}

func (e *NoDefaultSourceLocationError) Error() string { return "no supplier location configured" }
func (e *NoDefaultSourceLocationError) Kind() Kind    { return KindNoDefaultSourceLocation }

type SameWarehouseError struct{ Name string }

func (e *SameWarehouseError) Error() string {
	return fmt.Sprintf("origin and destination are the same warehouse %q", e.Name)
}
func (e *SameWarehouseError) Kind() Kind { return KindSameWarehouse }

type Shortfall struct {
	Code      string
	Requested float64
	Available float64
}

// InsufficientStockError перечисляет все строки с нехваткой, а не только первую.
type InsufficientStockError struct {
	Warehouse string
	Lines     []Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		parts = append(parts, fmt.Sprintf("%s (requested %g, available %g)", l.Code, l.Requested, l.Available))
	}
	return fmt.Sprintf("insufficient stock in %q: %s", e.Warehouse, strings.Join(parts, ", "))
}
func (e *InsufficientStockError) Kind() Kind { return KindInsufficientStock }

type InvalidLineInputError struct {
	Code   string
	Reason string
}

func (e *InvalidLineInputError) Error() string {
	return fmt.Sprintf("invalid line %q: %s", e.Code, e.Reason)
}
func (e *InvalidLineInputError) Kind() Kind { return KindInvalidLineInput }

var ErrInvalidCostInput = &InvalidCostInputError{}

type InvalidCostInputError struct{}

func (e *InvalidCostInputError) Error() string {
	return "incoming quantity and cost must be positive"
}
func (e *InvalidCostInputError) Kind() Kind { return KindInvalidCostInput }

// RemoteCallError — сбой вызова Odoo (транспорт или исключение на сервере).
type RemoteCallError struct {
	Operation string
	Detail    string
	Err       error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("remote call %s failed: %s", e.Operation, e.Detail)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

func (e *RemoteCallError) Kind() Kind {
	if errors.Is(e.Err, odoo.ErrAccessDenied) {
		return KindAuthenticationExpired
	}
	return KindRemoteCallFailed
}

func remoteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteCallError{Operation: op, Detail: err.Error(), Err: err}
}

// PartialCompletionError — picking существует, но не дошёл до done за отведённые попытки.
// Это предупреждение: операция может завершиться позже или вручную в Odoo.
type PartialCompletionError struct {
	PickingID int64
	Reference string
	State     PickingState
}

func (e *PartialCompletionError) Error() string {
	return fmt.Sprintf("picking %d left in state %q", e.PickingID, e.State)
}
func (e *PartialCompletionError) Kind() Kind { return KindPartialCompletion }

// IsWarning — ошибка не отменяет саму операцию.
func IsWarning(err error) bool {
	return KindOf(err) == KindPartialCompletion
}
