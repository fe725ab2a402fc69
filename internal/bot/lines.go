package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Spok95/stock-bot/internal/domain/stock"
)

func splitFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ';'
	})
}

// parseTransferLines разбирает строки "CODIGO CANTIDAD".
// Ноль и отрицательные количества пропускаются дальше: их отклонит оркестратор.
func parseTransferLines(text string) ([]stock.TransferLine, error) {
	var out []stock.TransferLine
	for i, raw := range strings.Split(text, "\n") {
		f := splitFields(raw)
		if len(f) == 0 {
			continue
		}
		if len(f) != 2 {
			return nil, fmt.Errorf("línea %d: se esperaba \"CODIGO CANTIDAD\"", i+1)
		}
		qty, err := strconv.Atoi(f[1])
		if err != nil {
			return nil, fmt.Errorf("línea %d: cantidad %q no es un número entero", i+1, f[1])
		}
		out = append(out, stock.TransferLine{ProductCode: f[0], Quantity: qty})
	}
	if len(out) == 0 {
		return nil, errors.New("no se encontraron líneas")
	}
	return out, nil
}

// parseEntryLines разбирает строки "CODIGO CANTIDAD COSTO"; в цене допускается запятая.
func parseEntryLines(text string) ([]stock.EntryLine, error) {
	var out []stock.EntryLine
	for i, raw := range strings.Split(text, "\n") {
		f := splitFields(raw)
		if len(f) == 0 {
			continue
		}
		if len(f) != 3 {
			return nil, fmt.Errorf("línea %d: se esperaba \"CODIGO CANTIDAD COSTO\"", i+1)
		}
		qty, err := strconv.Atoi(f[1])
		if err != nil {
			return nil, fmt.Errorf("línea %d: cantidad %q no es un número entero", i+1, f[1])
		}
		cost, err := decimal.NewFromString(strings.ReplaceAll(f[2], ",", "."))
		if err != nil {
			return nil, fmt.Errorf("línea %d: costo %q no es un número", i+1, f[2])
		}
		out = append(out, stock.EntryLine{ProductCode: f[0], Quantity: qty, UnitCost: cost})
	}
	if len(out) == 0 {
		return nil, errors.New("no se encontraron líneas")
	}
	return out, nil
}

// parseStockArgs: "CODIGO [CANTIDAD] BODEGA"; имя склада может содержать пробелы.
func parseStockArgs(args string) (code string, qty float64, warehouse string, err error) {
	f := strings.Fields(args)
	if len(f) < 2 {
		return "", 0, "", errors.New("uso: /stock CODIGO [CANTIDAD] BODEGA")
	}
	code, qty, rest := f[0], 1, f[1:]
	if v, perr := strconv.ParseFloat(strings.ReplaceAll(f[1], ",", "."), 64); perr == nil && len(f) > 2 {
		qty, rest = v, f[2:]
	}
	return code, qty, strings.Join(rest, " "), nil
}

func transferSummary(origin, dest string, lines []stock.TransferLine) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Traspaso %s ▶ %s", origin, dest)
	for _, l := range lines {
		fmt.Fprintf(&b, "\n• %s: %d", l.ProductCode, l.Quantity)
	}
	b.WriteString("\n\n¿Confirmar?")
	return b.String()
}

func entrySummary(warehouse string, lines []stock.EntryLine) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Entrada a %s", warehouse)
	for _, l := range lines {
		fmt.Fprintf(&b, "\n• %s: %d × %s", l.ProductCode, l.Quantity, l.UnitCost.String())
	}
	b.WriteString("\n\n¿Confirmar?")
	return b.String()
}

func formatHistory(list []stock.TransferSummary) string {
	if len(list) == 0 {
		return "No hay transferencias recientes."
	}
	var b strings.Builder
	b.WriteString("Últimas transferencias:")
	for _, t := range list {
		fmt.Fprintf(&b, "\n\n%s (%s) %s\n%s ▶ %s", t.Reference, t.State, t.Date.Format("2006-01-02 15:04"),
			t.OriginWarehouse, t.DestinationWarehouse)
		for _, p := range t.Products {
			fmt.Fprintf(&b, "\n  [%s] %s: %s", p.Code, p.Name, strconv.FormatFloat(p.Quantity, 'f', -1, 64))
		}
	}
	return b.String()
}

func availabilityText(code, warehouse string, qty float64, av stock.Availability) string {
	q := strconv.FormatFloat(qty, 'f', -1, 64)
	on := strconv.FormatFloat(av.OnHand, 'f', -1, 64)
	if av.Available {
		return fmt.Sprintf("✅ '%s' en '%s': disponible %s, requerido %s.", code, warehouse, on, q)
	}
	return fmt.Sprintf("❌ '%s' en '%s': disponible %s, requerido %s. No hay suficiente stock.", code, warehouse, on, q)
}
