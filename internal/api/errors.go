package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Spok95/stock-bot/internal/domain/stock"
)

type ErrorResponse struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// statusOf: вид ошибки → HTTP-код.
func statusOf(k stock.Kind) int {
	switch k {
	case stock.KindWarehouseNotFound, stock.KindProductNotFound:
		return http.StatusNotFound
	case stock.KindSameWarehouse, stock.KindInvalidLineInput, stock.KindInvalidCostInput:
		return http.StatusUnprocessableEntity
	case stock.KindInsufficientStock:
		return http.StatusConflict
	case stock.KindNoPickingType, stock.KindNoDefaultSourceLocation:
		return http.StatusFailedDependency
	case stock.KindRemoteCallFailed:
		return http.StatusBadGateway
	case stock.KindAuthenticationExpired:
		return http.StatusServiceUnavailable
	case stock.KindPartialCompletion:
		return http.StatusAccepted
	}
	return http.StatusInternalServerError
}

func newErrorResponse(err error) ErrorResponse {
	resp := ErrorResponse{Kind: string(stock.KindOf(err)), Message: stock.Message(err)}

	var short *stock.InsufficientStockError
	var line *stock.InvalidLineInputError
	var rc *stock.RemoteCallError
	switch {
	case errors.As(err, &short):
		lines := make([]gin.H, 0, len(short.Lines))
		for _, l := range short.Lines {
			lines = append(lines, gin.H{"code": l.Code, "requested": l.Requested, "available": l.Available})
		}
		resp.Details = map[string]any{"warehouse": short.Warehouse, "lines": lines}
	case errors.As(err, &line):
		resp.Details = map[string]any{"code": line.Code, "reason": line.Reason}
	case errors.As(err, &rc):
		resp.Details = map[string]any{"operation": rc.Operation}
	}
	return resp
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusOf(stock.KindOf(err)), newErrorResponse(err))
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Kind: "invalid_request", Message: err.Error()})
}
