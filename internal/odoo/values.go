package odoo

import "fmt"

// Хелперы для разбора ответов XML-RPC: целые приходят как int64,
// many2one как [id, "name"], пустые поля как false.

func Int64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func Float(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func String(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// Many2One разбирает [id, "display name"]; false даёт ok=false.
func Many2One(v any) (int64, string, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return 0, "", false
	}
	id, ok := Int64(arr[0])
	if !ok {
		return 0, "", false
	}
	name := ""
	if len(arr) > 1 {
		name = String(arr[1])
	}
	return id, name, true
}

// IDs разбирает список идентификаторов (ответ search или x2many поле).
func IDs(v any) []int64 {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(arr))
	for _, e := range arr {
		if id, ok := Int64(e); ok {
			out = append(out, id)
		}
	}
	return out
}

// Records разбирает ответ read/search_read.
func Records(v any) ([]map[string]any, error) {
	arr, ok := v.([]any)
	if !ok {
		if v == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("odoo: expected record list, got %T", v)
	}
	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("odoo: expected record, got %T", e)
		}
		out = append(out, m)
	}
	return out, nil
}

// AnyIDs превращает []int64 в []any для аргументов вызова.
func AnyIDs(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
