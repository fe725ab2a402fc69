package transfers

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Spok95/stock-bot/internal/domain/stock"
)

// Gateway — операции Odoo, которые нужны сценариям (реализует *stock.Gateway).
type Gateway interface {
	FindWarehouseByName(ctx context.Context, name string) (*stock.Warehouse, error)
	FindProductByCode(ctx context.Context, code string) (*stock.Product, error)
	FindPickingTypeID(ctx context.Context, wh stock.Warehouse, kind stock.PickingKind) (int64, error)
	FindSupplierLocationID(ctx context.Context) (int64, error)
	ReadStockQuantity(ctx context.Context, productID, locationID int64) (float64, error)
	CreatePicking(ctx context.Context, spec stock.PickingSpec) (int64, error)
	ConfirmPicking(ctx context.Context, id int64) error
	AssignPicking(ctx context.Context, id int64) error
	ValidatePicking(ctx context.Context, id int64) error
	ListMoveLines(ctx context.Context, pickingID int64) ([]stock.MoveLine, error)
	WriteMoveLineDoneQuantity(ctx context.Context, moveLineID int64, qty float64) error
	WriteProductStandardPrice(ctx context.Context, productID int64, cost decimal.Decimal) error
	ReadPicking(ctx context.Context, id int64) (*stock.Picking, error)
}

// PickingReader — всё, что нужно Verifier.
type PickingReader interface {
	ReadPicking(ctx context.Context, id int64) (*stock.Picking, error)
}

const (
	defaultConcurrency = 8
	defaultReadRetries = 2
	defaultReadBackoff = 200 * time.Millisecond
	tracerName         = "github.com/Spok95/stock-bot/internal/domain/transfers"
)

type options struct {
	log              *slog.Logger
	tracer           trace.Tracer
	concurrency      int
	readRetries      uint64
	readBackoff      time.Duration
	supplierFallback int64
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp.Tracer(tracerName) }
}

// WithConcurrency ограничивает число параллельных чтений по строкам.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithReadRetry — повторы только для чтений; изменяющие вызовы не повторяются никогда.
func WithReadRetry(retries uint64, backoff time.Duration) Option {
	return func(o *options) {
		o.readRetries = retries
		if backoff > 0 {
			o.readBackoff = backoff
		}
	}
}

// WithSupplierFallback — локация-источник прихода, если в Odoo нет локации поставщика.
// 0 отключает подстановку.
func WithSupplierFallback(locationID int64) Option {
	return func(o *options) { o.supplierFallback = locationID }
}

func buildOptions(opts []Option) options {
	o := options{
		log:         slog.Default(),
		tracer:      noop.NewTracerProvider().Tracer(tracerName),
		concurrency: defaultConcurrency,
		readRetries: defaultReadRetries,
		readBackoff: defaultReadBackoff,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
