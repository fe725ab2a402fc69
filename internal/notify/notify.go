package notify

import (
	"context"
	"errors"
	"fmt"
)

// Notifier отправляет текст в группу склада.
type Notifier interface {
	Notify(ctx context.Context, group, message string) error
}

// StatusError — сервис уведомлений ответил не 200.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("notification failed with status code %d", e.Code)
}

type Noop struct{}

func (Noop) Notify(context.Context, string, string) error { return nil }

// Multi отправляет во все каналы и собирает ошибки.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, group, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, group, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
