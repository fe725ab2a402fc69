package api

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Spok95/stock-bot/internal/domain/stock"
	"github.com/Spok95/stock-bot/internal/domain/transfers"
	"github.com/Spok95/stock-bot/internal/operations"
)

// Operations — то, что API берёт у сервиса операций.
type Operations interface {
	Transfer(ctx context.Context, actor, origin, dest string, lines []stock.TransferLine) *operations.Outcome
	Entry(ctx context.Context, actor, warehouse string, lines []stock.EntryLine) *operations.Outcome
	Availability(ctx context.Context, code, warehouse string, qty float64) (stock.Availability, error)
	RecentTransfers(ctx context.Context) ([]stock.TransferSummary, error)
	Verify(ctx context.Context, pickingID int64) transfers.VerifyResult
	NotifyAsync(ctx context.Context, message string, done func(error))
}

type Config struct {
	Token  string
	Log    *slog.Logger
	Tracer trace.TracerProvider
}

// Register вешает маршруты /api/v1 на r.
func Register(r gin.IRouter, ops Operations, cfg Config) {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider()
	}
	h := &Handlers{ops: ops, log: cfg.Log}

	v1 := r.Group("/api/v1", tracing(cfg.Tracer), requestLog(cfg.Log), bearer(cfg.Token))
	{
		v1.POST("/transfers", h.CreateTransfer)
		v1.POST("/entries", h.CreateEntry)
		v1.GET("/availability", h.Availability)
		v1.GET("/transfers/recent", h.RecentTransfers)
		v1.GET("/pickings/:id/verify", h.VerifyPicking)
	}
}

// NewEngine — отдельный gin.Engine с API; используется HTTP-сервером и в тестах.
func NewEngine(ops Operations, cfg Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	Register(r, ops, cfg)
	return r
}
