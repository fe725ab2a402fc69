package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Spok95/stock-bot/internal/domain/journal"
	"github.com/Spok95/stock-bot/internal/domain/stock"
	"github.com/Spok95/stock-bot/internal/operations"
)

type Handlers struct {
	ops Operations
	log *slog.Logger
}

type TransferRequest struct {
	Origin      string                `json:"origin" binding:"required"`
	Destination string                `json:"destination" binding:"required"`
	Lines       []TransferLineRequest `json:"lines" binding:"required,min=1,dive"`
}

type TransferLineRequest struct {
	Code     string `json:"code" binding:"required"`
	Quantity int    `json:"quantity"`
}

type EntryRequest struct {
	Warehouse string             `json:"warehouse" binding:"required"`
	Lines     []EntryLineRequest `json:"lines" binding:"required,min=1,dive"`
}

type EntryLineRequest struct {
	Code     string          `json:"code" binding:"required"`
	Quantity int             `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

type LineResponse struct {
	Code     string `json:"code"`
	Name     string `json:"name,omitempty"`
	Quantity int    `json:"quantity"`
	NewCost  string `json:"new_cost,omitempty"`
}

type OperationResponse struct {
	OperationID uuid.UUID      `json:"operation_id"`
	Status      journal.Status `json:"status"`
	PickingID   int64          `json:"picking_id"`
	Reference   string         `json:"reference,omitempty"`
	State       string         `json:"state,omitempty"`
	Message     string         `json:"message"`
	Lines       []LineResponse `json:"lines"`
	Warning     *ErrorResponse `json:"warning,omitempty"`
}

type AvailabilityResponse struct {
	Available bool    `json:"available"`
	OnHand    float64 `json:"on_hand"`
}

type VerifyResponse struct {
	PickingID int64  `json:"picking_id"`
	Success   bool   `json:"success"`
	State     string `json:"state"`
	Reference string `json:"reference,omitempty"`
	Attempts  int    `json:"attempts"`
	Message   string `json:"message"`
}

type TransferSummaryResponse struct {
	ID          int64                     `json:"id"`
	Reference   string                    `json:"reference"`
	Date        time.Time                 `json:"date"`
	Origin      string                    `json:"origin"`
	Destination string                    `json:"destination"`
	State       string                    `json:"state"`
	Products    []TransferProductResponse `json:"products"`
}

type TransferProductResponse struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
}

func actor(c *gin.Context) string { return "api:" + c.ClientIP() }

// CreateTransfer handles POST /api/v1/transfers
func (h *Handlers) CreateTransfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	lines := make([]stock.TransferLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, stock.TransferLine{ProductCode: l.Code, Quantity: l.Quantity})
	}
	h.respond(c, h.ops.Transfer(c.Request.Context(), actor(c), req.Origin, req.Destination, lines))
}

// CreateEntry handles POST /api/v1/entries
func (h *Handlers) CreateEntry(c *gin.Context) {
	var req EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	lines := make([]stock.EntryLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, stock.EntryLine{ProductCode: l.Code, Quantity: l.Quantity, UnitCost: l.UnitCost})
	}
	h.respond(c, h.ops.Entry(c.Request.Context(), actor(c), req.Warehouse, lines))
}

func (h *Handlers) respond(c *gin.Context, out *operations.Outcome) {
	if out.Status == journal.StatusFailed {
		abortWithError(c, out.Err)
		return
	}
	h.ops.NotifyAsync(c.Request.Context(), out.Notification, nil)

	resp := OperationResponse{
		OperationID: out.OperationID,
		Status:      out.Status,
		PickingID:   out.PickingID,
		Reference:   out.Reference,
		State:       string(out.State),
		Message:     out.Message,
		Lines:       make([]LineResponse, 0, len(out.Lines)),
	}
	for _, l := range out.Lines {
		lr := LineResponse{Code: l.Code, Name: l.Name, Quantity: l.Quantity}
		if !l.NewCost.IsZero() {
			lr.NewCost = l.NewCost.String()
		}
		resp.Lines = append(resp.Lines, lr)
	}
	code := http.StatusCreated
	if out.Status == journal.StatusPending {
		w := newErrorResponse(out.Err)
		resp.Warning = &w
		code = http.StatusAccepted
	}
	c.JSON(code, resp)
}

// Availability handles GET /api/v1/availability?code=&warehouse=&quantity=
func (h *Handlers) Availability(c *gin.Context) {
	code, warehouse := c.Query("code"), c.Query("warehouse")
	if code == "" || warehouse == "" {
		badRequest(c, errors.New("code and warehouse are required"))
		return
	}
	qty := 1.0
	if raw := c.Query("quantity"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			badRequest(c, errors.New("quantity must be a number"))
			return
		}
		qty = v
	}
	av, err := h.ops.Availability(c.Request.Context(), code, warehouse, qty)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, AvailabilityResponse{Available: av.Available, OnHand: av.OnHand})
}

// RecentTransfers handles GET /api/v1/transfers/recent
func (h *Handlers) RecentTransfers(c *gin.Context) {
	list, err := h.ops.RecentTransfers(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]TransferSummaryResponse, 0, len(list))
	for _, t := range list {
		ps := make([]TransferProductResponse, 0, len(t.Products))
		for _, p := range t.Products {
			ps = append(ps, TransferProductResponse{Code: p.Code, Name: p.Name, Quantity: p.Quantity})
		}
		out = append(out, TransferSummaryResponse{
			ID:          t.ID,
			Reference:   t.Reference,
			Date:        t.Date,
			Origin:      t.OriginWarehouse,
			Destination: t.DestinationWarehouse,
			State:       string(t.State),
			Products:    ps,
		})
	}
	c.JSON(http.StatusOK, out)
}

// VerifyPicking handles GET /api/v1/pickings/:id/verify
func (h *Handlers) VerifyPicking(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, errors.New("picking id must be a positive integer"))
		return
	}
	vr := h.ops.Verify(c.Request.Context(), id)
	if !vr.Success {
		h.log.Warn("manual verify: picking not done", "picking_id", id, "state", vr.State)
	}
	c.JSON(http.StatusOK, VerifyResponse{
		PickingID: vr.PickingID,
		Success:   vr.Success,
		State:     string(vr.State),
		Reference: vr.Reference,
		Attempts:  vr.Attempts,
		Message:   vr.Message,
	})
}
