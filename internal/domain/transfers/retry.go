package transfers

import (
	"context"

	"github.com/sethvargo/go-retry"

	"github.com/Spok95/stock-bot/internal/domain/stock"
)

// readWithRetry повторяет чтение при сбое вызова. Ошибки "не найдено",
// просроченная сессия и отмена контекста возвращаются сразу.
func readWithRetry[T any](ctx context.Context, o options, fn func(context.Context) (T, error)) (T, error) {
	var out T
	b := retry.WithMaxRetries(o.readRetries, retry.NewExponential(o.readBackoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			if stock.KindOf(err) == stock.KindRemoteCallFailed && ctx.Err() == nil {
				return retry.RetryableError(err)
			}
			return err
		}
		out = v
		return nil
	})
	return out, err
}
