package odoo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

const DefaultTimeout = 60 * time.Second

// Config — параметры подключения к Odoo.
type Config struct {
	URL      string
	DB       string
	Username string
	Password string
	Timeout  time.Duration
}

// Session — результат однократной аутентификации. Создаётся при старте процесса
// и дальше только читается.
type Session struct {
	url      string
	db       string
	username string
	password string
	uid      int64
}

func (s *Session) UID() int64       { return s.uid }
func (s *Session) DB() string       { return s.db }
func (s *Session) URL() string      { return s.url }
func (s *Session) Username() string { return s.username }

func (s *Session) String() string {
	return fmt.Sprintf("odoo session %s@%s/%s uid=%d", s.username, s.url, s.db, s.uid)
}

// NewSession собирает сессию из уже известного uid (для тестов и повторного использования).
func NewSession(cfg Config, uid int64) *Session {
	return &Session{
		url:      strings.TrimRight(cfg.URL, "/"),
		db:       cfg.DB,
		username: cfg.Username,
		password: cfg.Password,
		uid:      uid,
	}
}

// NewTransport возвращает http-транспорт с таймаутами на соединение и ответ.
func NewTransport(timeout time.Duration) http.RoundTripper {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   8,
	}
}

// Authenticate обменивает логин/пароль на uid через common.authenticate.
func Authenticate(ctx context.Context, cfg Config, transport http.RoundTripper) (*Session, error) {
	if cfg.URL == "" || cfg.DB == "" || cfg.Username == "" {
		return nil, errors.New("odoo: url, db and username are required")
	}
	if transport == nil {
		transport = NewTransport(cfg.Timeout)
	}
	common := endpoint{url: strings.TrimRight(cfg.URL, "/") + "/xmlrpc/2/common", http: &http.Client{Transport: transport}}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply, err := common.call(ctx, "authenticate", cfg.DB, cfg.Username, cfg.Password, map[string]any{})
	if err != nil {
		var rf *remoteFault
		if errors.As(err, &rf) {
			return nil, newFault("common", "authenticate", rf.msg)
		}
		return nil, fmt.Errorf("odoo: authenticate: %w", err)
	}

	// Odoo отвечает false при неверных учётных данных
	uid, ok := Int64(reply)
	if !ok || uid <= 0 {
		return nil, fmt.Errorf("odoo: authenticate %s@%s: %w", cfg.Username, cfg.DB, ErrAccessDenied)
	}
	return NewSession(cfg, uid), nil
}
