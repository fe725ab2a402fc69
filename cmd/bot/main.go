package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Spok95/stock-bot/internal/api"
	"github.com/Spok95/stock-bot/internal/bot"
	"github.com/Spok95/stock-bot/internal/config"
	"github.com/Spok95/stock-bot/internal/dialog"
	"github.com/Spok95/stock-bot/internal/domain/journal"
	"github.com/Spok95/stock-bot/internal/domain/stock"
	"github.com/Spok95/stock-bot/internal/domain/transfers"
	"github.com/Spok95/stock-bot/internal/infra/db"
	httpx "github.com/Spok95/stock-bot/internal/infra/http"
	"github.com/Spok95/stock-bot/internal/infra/logger"
	"github.com/Spok95/stock-bot/internal/infra/metrics"
	"github.com/Spok95/stock-bot/internal/infra/resilience"
	"github.com/Spok95/stock-bot/internal/infra/tracing"
	"github.com/Spok95/stock-bot/internal/jobs"
	"github.com/Spok95/stock-bot/internal/notify"
	"github.com/Spok95/stock-bot/internal/odoo"
	"github.com/Spok95/stock-bot/internal/operations"
)

func main() {
	cfgPath := flag.String("config", "config/example.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
	log.Info("graceful shutdown complete")
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Setup(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Env:         cfg.App.Env,
		SampleRatio: cfg.Tracing.SampleRatio,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(sctx)
	}()

	m := metrics.New(prometheus.DefaultRegisterer)

	// Odoo: одна аутентификация на процесс; без неё работать нельзя.
	odooCfg := odoo.Config{
		URL:      cfg.Odoo.URL,
		DB:       cfg.Odoo.DB,
		Username: cfg.Odoo.Username,
		Password: cfg.Odoo.Password,
		Timeout:  cfg.Odoo.Timeout,
	}
	transport := odoo.NewTransport(cfg.Odoo.Timeout)
	session, err := odoo.Authenticate(ctx, odooCfg, transport)
	if err != nil {
		return err
	}
	log.Info("odoo session ready", "session", session.String())

	clientOpts := []odoo.Option{
		odoo.WithTimeout(cfg.Odoo.Timeout),
		odoo.WithTransport(transport),
		odoo.WithObserver(m),
		odoo.WithLogger(log),
		odoo.WithTracer(tp),
	}
	if cfg.Odoo.Breaker.Enabled {
		bc := resilience.DefaultBreakerConfig("odoo")
		bc.FailureThreshold = cfg.Odoo.Breaker.FailureThreshold
		bc.Timeout = cfg.Odoo.Breaker.Timeout
		clientOpts = append(clientOpts, odoo.WithBreaker(resilience.NewBreaker(bc, log)))
	}
	client, err := odoo.NewClient(session, clientOpts...)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	gw := stock.NewGateway(client)
	opts := []transfers.Option{
		transfers.WithLogger(log),
		transfers.WithTracerProvider(tp),
		transfers.WithConcurrency(cfg.Odoo.Concurrency),
		transfers.WithReadRetry(cfg.Odoo.ReadRetries, cfg.Odoo.ReadBackoff),
		transfers.WithSupplierFallback(cfg.Odoo.SupplierLocationFallback),
	}
	verifier := transfers.NewVerifier(gw, nil, opts...)

	// Postgres: журнал операций и состояния диалогов.
	if err := db.Migrate(ctx, cfg.Postgres.DSN, log); err != nil {
		return err
	}
	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info("db connected")
	ops := journal.NewRepo(pool)

	var tg *tgbotapi.BotAPI
	if cfg.Telegram.Enabled {
		tg, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return err
		}
		log.Info("telegram authorized", "bot", tg.Self.UserName)
	}

	svc := operations.New(operations.Deps{
		Transfers: transfers.NewTransferOrchestrator(gw, opts...),
		Entries:   transfers.NewEntryOrchestrator(gw, opts...),
		Verifier:  verifier,
		Checker:   stock.NewAvailabilityChecker(gw),
		Catalog:   gw,
		Journal:   ops,
		Notifier:  newNotifier(cfg, tg, log),
		Metrics:   m,
		Log:       log,
	}, operations.Config{
		VerifyAttempts: cfg.Verify.Attempts,
		VerifyDelay:    cfg.Verify.Delay,
		Group:          cfg.Notify.Group,
		NotifyDriver:   cfg.Notify.Driver,
		HistoryLimit:   cfg.History.Limit,
	})
	defer svc.Wait()

	httpOpts := httpx.Options{API: api.NewEngine(svc, api.Config{Token: cfg.HTTP.APIToken, Log: log, Tracer: tp})}
	if cfg.Metrics.Enabled {
		httpOpts.Gatherer = prometheus.DefaultGatherer
	}
	srv := httpx.New(cfg.HTTP.Addr, httpOpts)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("http server error", "err", err)
			stop()
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	if cfg.Reconcile.Enabled {
		r := jobs.NewReconciler(ops, verifier, m, nil, cfg.Reconcile.Lookback, log)
		sched, err := jobs.NewScheduler(r, cfg.Reconcile.Interval, log)
		if err != nil {
			return err
		}
		sched.Start()
		defer func() { _ = sched.Stop() }()
	}

	if tg != nil {
		b := bot.New(tg, log, dialog.NewRepo(pool), svc, cfg.Telegram.AdminChatID, cfg.Telegram.AllowedUsers)
		go func() {
			if err := b.Run(ctx, 30); err != nil && ctx.Err() == nil {
				log.Error("bot stopped", "err", err)
				stop()
			}
		}()
		log.Info("telegram bot started")
	}

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func newNotifier(cfg config.Config, tg *tgbotapi.BotAPI, log *slog.Logger) notify.Notifier {
	webhook := func() notify.Notifier { return notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Timeout) }
	telegram := func() notify.Notifier {
		if tg == nil {
			log.Warn("telegram notifications requested but telegram is disabled")
			return notify.Noop{}
		}
		return notify.NewTelegram(tg, cfg.Telegram.NotifyChats)
	}
	switch cfg.Notify.Driver {
	case "webhook":
		return webhook()
	case "telegram":
		return telegram()
	case "both":
		return notify.Multi{webhook(), telegram()}
	}
	return notify.Noop{}
}
