package transfers

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Spok95/stock-bot/internal/domain/stock"
)

// VerifyResult — итог проверки состояния picking.
type VerifyResult struct {
	PickingID int64
	Success   bool
	State     stock.PickingState
	Reference string
	Attempts  int
	Message   string

	// LastErr — последняя ошибка чтения, если была.
	LastErr error
}

// Err возвращает *stock.PartialCompletionError, если picking не дошёл до done.
func (r VerifyResult) Err() error {
	if r.Success {
		return nil
	}
	return &stock.PartialCompletionError{PickingID: r.PickingID, Reference: r.Reference, State: r.State}
}

// Verifier опрашивает Odoo, пока picking не станет done или не кончатся попытки.
// button_validate может вернуться раньше, чем picking реально проведён.
type Verifier struct {
	gw    PickingReader
	clock clockwork.Clock
	opt   options
}

func NewVerifier(gw PickingReader, clock clockwork.Clock, opts ...Option) *Verifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Verifier{gw: gw, clock: clock, opt: buildOptions(opts)}
}

// Verify делает не больше maxAttempts чтений с паузой delay между ними.
// done — успех сразу; cancel — сразу неуспех. Ошибки чтения расходуют попытку.
// Неуспех не является ошибкой операции: см. VerifyResult.Err.
func (v *Verifier) Verify(ctx context.Context, pickingID int64, maxAttempts int, delay time.Duration) VerifyResult {
	ctx, span := v.opt.tracer.Start(ctx, "transfers.verify",
		trace.WithAttributes(attribute.Int64("picking_id", pickingID)))
	defer span.End()

	if maxAttempts < 1 {
		maxAttempts = 1
	}
	res := VerifyResult{PickingID: pickingID, State: stock.StateError}
	log := v.opt.log.With("op", "verify", "picking_id", pickingID)

	observed := false
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 && delay > 0 {
			select {
			case <-v.clock.After(delay):
			case <-ctx.Done():
				res.LastErr = ctx.Err()
				return v.finish(res, observed, span)
			}
		}
		if ctx.Err() != nil {
			res.LastErr = ctx.Err()
			break
		}

		res.Attempts = attempt
		p, err := v.gw.ReadPicking(ctx, pickingID)
		if err != nil {
			res.LastErr = err
			log.Warn("read picking failed", "attempt", attempt, "err", err)
			continue
		}
		observed = true
		res.State = p.State
		if p.Reference != "" {
			res.Reference = p.Reference
		}
		if p.State == stock.StateDone {
			res.Success = true
			break
		}
		if p.State == stock.StateCancel {
			break
		}
		log.Debug("picking not done yet", "attempt", attempt, "state", p.State)
	}
	return v.finish(res, observed, span)
}

func (v *Verifier) finish(res VerifyResult, observed bool, span trace.Span) VerifyResult {
	span.SetAttributes(
		attribute.String("state", string(res.State)),
		attribute.Int("attempts", res.Attempts),
		attribute.Bool("success", res.Success),
	)
	switch {
	case res.Success:
		ref := res.Reference
		if ref == "" {
			ref = fmt.Sprintf("ID %d", res.PickingID)
		}
		res.Message = fmt.Sprintf("La transferencia %s se completó correctamente.", ref)
	case !observed && res.LastErr != nil:
		res.Message = fmt.Sprintf("No se pudo comprobar el estado de la transferencia: %s", stock.Message(res.LastErr))
	default:
		res.Message = stock.Message(res.Err())
	}
	if !res.Success {
		v.opt.log.Warn("picking not confirmed as done",
			"picking_id", res.PickingID, "state", res.State, "attempts", res.Attempts)
	}
	return res
}
