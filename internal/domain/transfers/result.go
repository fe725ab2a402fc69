package transfers

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Line — строка итога операции.
type Line struct {
	Code     string
	Name     string
	Quantity int

	// Для прихода: цена поступления и новая средняя себестоимость.
	UnitCost decimal.Decimal
	NewCost  decimal.Decimal
}

type TransferResult struct {
	PickingID   int64
	Reference   string
	Origin      string
	Destination string
	Lines       []Line
}

// Message — текст для группы "ENTRADAS Y SALIDAS".
func (r *TransferResult) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s ▶ %s", r.Origin, r.Destination)
	writeLines(&b, r.Lines)
	return b.String()
}

type EntryResult struct {
	PickingID int64
	Reference string
	Warehouse string
	Lines     []Line
}

func (r *EntryResult) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Entrada a *%s*", r.Warehouse)
	writeLines(&b, r.Lines)
	return b.String()
}

func writeLines(b *strings.Builder, lines []Line) {
	for _, l := range lines {
		fmt.Fprintf(b, "\n[%s] %s: %d", l.Code, l.Name, l.Quantity)
	}
}
