package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	Odoo struct {
		URL                      string
		DB                       string
		Username                 string
		Password                 string
		Timeout                  time.Duration
		SupplierLocationFallback int64         `mapstructure:"supplier_location_fallback"`
		Concurrency              int           `mapstructure:"concurrency"`
		ReadRetries              uint64        `mapstructure:"read_retries"`
		ReadBackoff              time.Duration `mapstructure:"read_backoff"`
		Breaker                  struct {
			Enabled          bool
			FailureThreshold uint32 `mapstructure:"failure_threshold"`
			Timeout          time.Duration
		} `mapstructure:"breaker"`
	} `mapstructure:"odoo"`

	Telegram struct {
		Enabled      bool
		Token        string
		AdminChatID  int64            `mapstructure:"admin_chat_id"`
		AllowedUsers []int64          `mapstructure:"allowed_users"`
		NotifyChats  map[string]int64 `mapstructure:"notify_chats"`
	} `mapstructure:"telegram"`

	Notify struct {
		Driver     string // webhook | telegram | both | none
		WebhookURL string `mapstructure:"webhook_url"`
		Group      string
		Timeout    time.Duration
	} `mapstructure:"notify"`

	HTTP struct {
		Addr     string
		APIToken string `mapstructure:"api_token"`
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Tracing struct {
		Enabled     bool
		Endpoint    string
		ServiceName string  `mapstructure:"service_name"`
		SampleRatio float64 `mapstructure:"sample_ratio"`
		Insecure    bool
	} `mapstructure:"tracing"`

	Verify struct {
		Attempts int
		Delay    time.Duration
	} `mapstructure:"verify"`

	Reconcile struct {
		Enabled  bool
		Interval time.Duration
		Lookback time.Duration
	} `mapstructure:"reconcile"`

	History struct {
		Limit int
	} `mapstructure:"history"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "America/Bogota")

	v.SetDefault("odoo.url", "")
	v.SetDefault("odoo.db", "")
	v.SetDefault("odoo.username", "")
	v.SetDefault("odoo.password", "")
	v.SetDefault("odoo.timeout", "60s")
	v.SetDefault("odoo.supplier_location_fallback", 0)
	v.SetDefault("odoo.concurrency", 8)
	v.SetDefault("odoo.read_retries", 2)
	v.SetDefault("odoo.read_backoff", "200ms")
	v.SetDefault("odoo.breaker.enabled", true)
	v.SetDefault("odoo.breaker.failure_threshold", 5)
	v.SetDefault("odoo.breaker.timeout", "30s")

	v.SetDefault("telegram.enabled", true)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_chat_id", 0)
	v.SetDefault("telegram.allowed_users", []int64{})
	v.SetDefault("telegram.notify_chats", map[string]int64{})

	v.SetDefault("notify.driver", "webhook")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.group", "ENTRADAS Y SALIDAS")
	v.SetDefault("notify.timeout", "60s")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.api_token", "")

	v.SetDefault("postgres.dsn", "")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.service_name", "stock-bot")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.insecure", true)

	v.SetDefault("verify.attempts", 5)
	v.SetDefault("verify.delay", "2s")

	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.interval", "5m")
	v.SetDefault("reconcile.lookback", "72h")

	v.SetDefault("history.limit", 10)
}

// Load читает YAML, затем переопределения из окружения (APP_ODOO_PASSWORD и т.п.).
// .env в рабочей директории подхватывается, если есть.
func Load(path string) (Config, error) {
	var c Config
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return c, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	c.Odoo.URL = strings.TrimRight(c.Odoo.URL, "/")
	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Odoo.URL == "" {
		errs = append(errs, errors.New("odoo.url is required"))
	}
	if c.Odoo.DB == "" {
		errs = append(errs, errors.New("odoo.db is required"))
	}
	if c.Odoo.Username == "" {
		errs = append(errs, errors.New("odoo.username is required"))
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required when telegram is enabled"))
	}
	switch c.Notify.Driver {
	case "webhook", "both":
		if c.Notify.WebhookURL == "" {
			errs = append(errs, errors.New("notify.webhook_url is required for the webhook driver"))
		}
	case "telegram", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown notify.driver %q", c.Notify.Driver))
	}
	if c.Verify.Attempts < 1 {
		errs = append(errs, errors.New("verify.attempts must be at least 1"))
	}
	return errors.Join(errs...)
}
