package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration errors. They fail the current cycle only and
// are retried after a full tick, unlike transient I/O errors.
var ErrInvalid = errors.New("invalid configuration")

type Kind string

const (
	KindDayHighLow Kind = "day-high-low"
	KindBidAndAsk  Kind = "bid-and-ask"
	KindBidOrAsk   Kind = "bid-or-ask"
)

func (k Kind) Valid() bool {
	switch k {
	case KindDayHighLow, KindBidAndAsk, KindBidOrAsk:
		return true
	}
	return false
}

type Direction string

const (
	DirectionRebuy  Direction = "rebuy"
	DirectionResell Direction = "resell"
)

const (
	defaultTickLen  = 86400
	defaultBaseURL  = "https://api.kucoin.com"
	defaultTimeout  = 10 * time.Second
	defaultLogLevel = "info"
)

type Config struct {
	Base          string           `yaml:"base"`
	Quote         string           `yaml:"quote"`
	TickLen       int              `yaml:"tick_len"`
	RetryInterval int              `yaml:"retry_interval"`
	LogLevel      string           `yaml:"loglevel"`
	Strategies    []StrategyConfig `yaml:"strategies"`
	Reconcile     ReconcileConfig  `yaml:"reconcile"`
	REST          RESTConfig       `yaml:"rest"`
	Metrics       MetricsConfig    `yaml:"metrics"`
	Telegram      TelegramConfig   `yaml:"telegram"`
}

type StrategyConfig struct {
	Name string     `yaml:"name"`
	Kind Kind       `yaml:"strategy"`
	Buy  SideConfig `yaml:"buy"`
	Sell SideConfig `yaml:"sell"`
}

// SideConfig holds the ladder shape for one side. An OrderCount of zero
// disables the side.
type SideConfig struct {
	OrderCount int     `yaml:"order_count"`
	VolPercent float64 `yaml:"vol_percent"`
	PcntBumpA  float64 `yaml:"pcnt_bump_a"`
	PcntBumpC  float64 `yaml:"pcnt_bump_c"`
}

type ReconcileConfig struct {
	Enabled    bool        `yaml:"enabled"`
	Directions []Direction `yaml:"directions"`
	Lookback   int         `yaml:"lookback"`
	CacheDir   string      `yaml:"cache_dir"`
	Cached     bool        `yaml:"cached"`
}

type RESTConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

// Symbol returns the KuCoin market pair, e.g. KCS-USDT.
func (c *Config) Symbol() string {
	return c.Base + "-" + c.Quote
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickLen) * time.Second
}

// RetryDelay is the wait after a transient failure. It never exceeds the tick.
func (c *Config) RetryDelay() time.Duration {
	if c.RetryInterval <= 0 || c.RetryInterval >= c.TickLen {
		return c.TickInterval()
	}
	return time.Duration(c.RetryInterval) * time.Second
}

// LookbackWindow bounds the order history consulted by the reconciler.
func (c *Config) LookbackWindow() time.Duration {
	if c.Reconcile.Lookback > 0 {
		return time.Duration(c.Reconcile.Lookback) * time.Second
	}
	return 2 * c.TickInterval()
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: config path is required", ErrInvalid)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	cfg, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses a config document, applies defaults and env overrides, and
// validates the result. Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	cfg.Base = strings.ToUpper(strings.TrimSpace(cfg.Base))
	cfg.Quote = strings.ToUpper(strings.TrimSpace(cfg.Quote))
	if cfg.TickLen == 0 {
		cfg.TickLen = defaultTickLen
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.Reconcile.Enabled && len(cfg.Reconcile.Directions) == 0 {
		cfg.Reconcile.Directions = []Direction{DirectionRebuy, DirectionResell}
	}
	if cfg.REST.BaseURL == "" {
		cfg.REST.BaseURL = defaultBaseURL
	}
	cfg.REST.BaseURL = strings.TrimRight(cfg.REST.BaseURL, "/")
	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = defaultTimeout
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = "127.0.0.1:9001"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func applyEnvOverrides(cfg *Config) {
	if token := strings.TrimSpace(os.Getenv("KC_TELEGRAM_TOKEN")); token != "" {
		cfg.Telegram.Token = token
	}
	if chatID := strings.TrimSpace(os.Getenv("KC_TELEGRAM_CHAT_ID")); chatID != "" {
		cfg.Telegram.ChatID = chatID
	}
}

// maxSeconds caps every duration setting at one year so the conversion to
// time.Duration cannot overflow.
const maxSeconds = 365 * 24 * 60 * 60

func validate(cfg *Config) error {
	if cfg.Base == "" {
		return errors.New("base is required")
	}
	if cfg.Quote == "" {
		return errors.New("quote is required")
	}
	if cfg.TickLen <= 0 || cfg.TickLen > maxSeconds {
		return fmt.Errorf("tick_len must be in (0, %d]", maxSeconds)
	}
	if cfg.RetryInterval < 0 || cfg.RetryInterval > maxSeconds {
		return fmt.Errorf("retry_interval must be in [0, %d]", maxSeconds)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown loglevel %q", cfg.LogLevel)
	}
	for i, strategy := range cfg.Strategies {
		if !strategy.Kind.Valid() {
			return fmt.Errorf("strategies[%d] (%s): unknown strategy %q", i, strategy.Name, strategy.Kind)
		}
		if err := validateSide(strategy.Buy); err != nil {
			return fmt.Errorf("strategies[%d] (%s) buy: %w", i, strategy.Name, err)
		}
		if err := validateSide(strategy.Sell); err != nil {
			return fmt.Errorf("strategies[%d] (%s) sell: %w", i, strategy.Name, err)
		}
	}
	for _, dir := range cfg.Reconcile.Directions {
		if dir != DirectionRebuy && dir != DirectionResell {
			return fmt.Errorf("reconcile: unknown direction %q", dir)
		}
	}
	if cfg.Reconcile.Lookback < 0 || cfg.Reconcile.Lookback > maxSeconds {
		return fmt.Errorf("reconcile.lookback must be in [0, %d]", maxSeconds)
	}
	if cfg.Reconcile.Cached && strings.TrimSpace(cfg.Reconcile.CacheDir) == "" {
		return errors.New("reconcile.cached requires reconcile.cache_dir")
	}
	if cfg.REST.Timeout < 0 {
		return errors.New("rest.timeout must be > 0")
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	if cfg.Telegram.Enabled && (strings.TrimSpace(cfg.Telegram.Token) == "" || strings.TrimSpace(cfg.Telegram.ChatID) == "") {
		return errors.New("telegram.token and telegram.chat_id are required when telegram is enabled")
	}
	return nil
}

func validateSide(side SideConfig) error {
	if side.OrderCount < 0 {
		return errors.New("order_count must be >= 0")
	}
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"vol_percent", side.VolPercent},
		{"pcnt_bump_a", side.PcntBumpA},
		{"pcnt_bump_c", side.PcntBumpC},
	} {
		if math.IsNaN(field.value) || math.IsInf(field.value, 0) {
			return fmt.Errorf("%s must be a finite number", field.name)
		}
	}
	if side.OrderCount == 0 {
		return nil
	}
	if side.VolPercent <= 0 || side.VolPercent > 100 {
		return fmt.Errorf("vol_percent %v must be in (0, 100]", side.VolPercent)
	}
	return nil
}
