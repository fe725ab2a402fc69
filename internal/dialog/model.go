package dialog

type State string

const (
	StateIdle State = "idle"

	// Traspaso между складами
	StateTrOrigin  State = "tr_origin"  // выбор склада-источника
	StateTrDest    State = "tr_dest"    // выбор склада-получателя
	StateTrLines   State = "tr_lines"   // ввод строк "КОД КОЛ-ВО" или Excel
	StateTrConfirm State = "tr_confirm" // сводка и подтверждение

	// Entrada (приход от поставщика)
	StateEnWarehouse State = "en_warehouse"
	StateEnLines     State = "en_lines" // "КОД КОЛ-ВО ЦЕНА" или Excel
	StateEnConfirm   State = "en_confirm"
)

// Ключи payload.
const (
	KeyOrigin    = "origin"
	KeyDest      = "dest"
	KeyWarehouse = "warehouse"
	KeyLines     = "lines" // исходный текст строк, разбирается заново при подтверждении
)

type Payload map[string]any

type Item struct {
	ChatID  int64
	State   State
	Payload Payload
}
