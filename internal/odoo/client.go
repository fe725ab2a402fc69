package odoo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Spok95/stock-bot/internal/infra/resilience"
)

// Observer получает результат каждого вызова (метрики).
type Observer interface {
	ObserveCall(model, method string, d time.Duration, err error)
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option        { return func(c *Client) { c.timeout = d } }
func WithTransport(t http.RoundTripper) Option  { return func(c *Client) { c.transport = t } }
func WithBreaker(b *resilience.Breaker) Option  { return func(c *Client) { c.breaker = b } }
func WithObserver(o Observer) Option            { return func(c *Client) { c.observer = o } }
func WithLogger(l *slog.Logger) Option          { return func(c *Client) { c.log = l } }
func WithTracer(tp trace.TracerProvider) Option { return func(c *Client) { c.tracer = tp.Tracer(tracerName) } }

const tracerName = "github.com/Spok95/stock-bot/internal/odoo"

// Client вызывает object.execute_kw от имени сессии. Своих ретраев нет:
// решать, можно ли повторить вызов, должен вызывающий код.
type Client struct {
	session   *Session
	object    endpoint
	transport http.RoundTripper
	timeout   time.Duration
	breaker   *resilience.Breaker
	observer  Observer
	tracer    trace.Tracer
	log       *slog.Logger
}

func NewClient(session *Session, opts ...Option) (*Client, error) {
	if session == nil {
		return nil, errors.New("odoo: nil session")
	}
	c := &Client{
		session: session,
		timeout: DefaultTimeout,
		log:     slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(c)
	}
	if c.transport == nil {
		c.transport = NewTransport(c.timeout)
	}
	c.object = endpoint{url: session.url + "/xmlrpc/2/object", http: &http.Client{Transport: c.transport}}
	return c, nil
}

// Close закрывает простаивающие соединения.
func (c *Client) Close() error {
	c.object.http.CloseIdleConnections()
	return nil
}

func (c *Client) Session() *Session { return c.session }

// faultResult — ответ с ошибкой приложения. Размыкатель считает его успешным:
// сервер жив, просто отклонил запрос.
type faultResult struct{ err error }

// Execute выполняет model.method(*args, **kwargs) и возвращает сырой XML-RPC ответ.
func (c *Client) Execute(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error) {
	ctx, span := c.tracer.Start(ctx, "odoo.execute_kw", trace.WithAttributes(
		attribute.String("odoo.model", model),
		attribute.String("odoo.method", method),
	))
	defer span.End()

	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	start := time.Now()
	var (
		res any
		err error
	)
	if c.breaker != nil {
		var out any
		out, err = c.breaker.Execute(func() (any, error) {
			r, callErr := c.call(ctx, model, method, args, kwargs)
			var fe *FaultError
			if errors.As(callErr, &fe) {
				return faultResult{err: callErr}, nil
			}
			return r, callErr
		})
		if errors.Is(err, resilience.ErrOpen) {
			err = fmt.Errorf("%s.%s: %w", model, method, ErrCircuitOpen)
		}
		if fr, ok := out.(faultResult); ok {
			err = fr.err
		} else if err == nil {
			res = out
		}
	} else {
		res, err = c.call(ctx, model, method, args, kwargs)
	}
	elapsed := time.Since(start)

	if c.observer != nil {
		c.observer.ObserveCall(model, method, elapsed, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Debug("odoo call failed", "model", model, "method", method, "took", elapsed, "err", err)
		return nil, err
	}
	c.log.Debug("odoo call", "model", model, "method", method, "took", elapsed)
	return res, nil
}

func (c *Client) call(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reply, err := c.object.call(ctx, "execute_kw",
		c.session.db, c.session.uid, c.session.password, model, method, args, kwargs)
	if err != nil {
		return nil, asFault(model, method, err)
	}
	return reply, nil
}
