package journal

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindTransfer Kind = "transfer"
	KindEntry    Kind = "entry"
)

// Status — итог операции с точки зрения бота.
type Status string

const (
	StatusDone    Status = "done"
	StatusPending Status = "pending" // picking создан, но не подтверждён как done
	StatusFailed  Status = "failed"
)

type Line struct {
	Code     string `json:"code"`
	Name     string `json:"name,omitempty"`
	Quantity int    `json:"quantity"`
	UnitCost string `json:"unit_cost,omitempty"`
}

type Entry struct {
	ID          uuid.UUID
	Kind        Kind
	Actor       string
	Origin      string
	Destination string
	PickingID   int64
	Reference   string
	Status      Status
	State       string
	Message     string
	Lines       []Line
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
