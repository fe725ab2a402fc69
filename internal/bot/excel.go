package bot

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/stock-bot/internal/domain/stock"
)

// Колонки шаблона: codigo, nombre, costo_actual, cantidad, costo_unitario.
const (
	colCode = 0
	colQty  = 3
	colCost = 4
)

// entryTemplate — шаблон прихода: товары с текущей себестоимостью, количество и цена пустые.
func entryTemplate(products []stock.Product) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	header := []interface{}{"codigo", "nombre", "costo_actual", "cantidad", "costo_unitario"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	row := 2
	for _, p := range products {
		if p.DefaultCode == "" {
			continue
		}
		cost, _ := p.StandardPrice.Float64()
		excelRow := []interface{}{p.DefaultCode, p.Name, cost, "", ""}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		row++
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// linesFromXLSX превращает заполненный шаблон в текст строк того же формата,
// что вводится вручную; дальше он идёт через parseTransferLines/parseEntryLines.
// Строки без количества пропускаются.
func linesFromXLSX(data []byte, withCost bool) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", errors.New("no se pudo leer el archivo Excel (¿es un .xlsx?)")
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		return "", fmt.Errorf("leer hoja: %w", err)
	}

	var lines []string
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		code := cell(row, colCode)
		qty := cell(row, colQty)
		if code == "" || qty == "" {
			continue
		}
		if !withCost {
			lines = append(lines, code+" "+qty)
			continue
		}
		cost := cell(row, colCost)
		if cost == "" {
			return "", fmt.Errorf("fila %d: falta costo_unitario para '%s'", i+1, code)
		}
		lines = append(lines, code+" "+qty+" "+cost)
	}
	if len(lines) == 0 {
		return "", errors.New("el archivo no contiene filas con cantidad")
	}
	return strings.Join(lines, "\n"), nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// historyXLSX — выгрузка истории: строка на каждый товар перемещения.
func historyXLSX(list []stock.TransferSummary) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	header := []interface{}{"id", "referencia", "fecha", "origen", "destino", "estado", "codigo", "producto", "cantidad"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	row := 2
	for _, t := range list {
		for _, p := range t.Products {
			excelRow := []interface{}{
				t.ID,
				t.Reference,
				t.Date.Format("2006-01-02 15:04:05"),
				t.OriginWarehouse,
				t.DestinationWarehouse,
				string(t.State),
				p.Code,
				p.Name,
				p.Quantity,
			}
			cellName, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(sheet, cellName, &excelRow); err != nil {
				return nil, fmt.Errorf("row %d: %w", row, err)
			}
			row++
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
