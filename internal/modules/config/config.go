package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"perp_bot/pkg/logger"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	apiKeyENV         = "BINANCE_API_KEY"
	apiSecretENV      = "BINANCE_API_SECRET"
)

// Config ...
type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB      string `yaml:"db_dsn"`
	Service struct {
		HealthAddr string `yaml:"health_addr"`
	} `yaml:"service"`
	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	Venue struct {
		APIKey     string `yaml:"api_key"`
		APISecret  string `yaml:"api_secret"`
		BaseURL    string `yaml:"base_url"`
		WSURL      string `yaml:"ws_url"`
		RecvWindow int    `yaml:"recv_window"`
	} `yaml:"venue"`

	// Рабочее множество
	Symbols    []string `yaml:"symbols"`
	Timeframes []string `yaml:"timeframes"`

	Trading TradingConfig `yaml:"trading"`
}

// TradingConfig — весь риск/лайфцикл. Дефолты см. NewConfig.
type TradingConfig struct {
	MaxOpenPositions int     `yaml:"max_open_positions"`
	Leverage         int     `yaml:"leverage"` // стартовое, авто-подстройка при сайзинге
	MarginUSDT       string  `yaml:"margin_usdt"`
	FallbackMargin   string  `yaml:"fallback_margin_usdt"`
	StopLossAtrMult  float64 `yaml:"stop_loss_atr_mult"`

	// Схема тейков: "pnl_pct" (процент от нотионала в PnL) или "r_multiple".
	// Обе дают разный профиль риска, молча не смешиваем.
	TPScheme         string    `yaml:"tp_scheme"`
	TPPnlPercentages []float64 `yaml:"tp_pnl_percentages"`
	TPRMultiples     []float64 `yaml:"tp_r_multiples"`
	TPAllocation     []float64 `yaml:"tp_allocation"`

	BreakEvenR     float64 `yaml:"break_even_r"`
	CommissionRate float64 `yaml:"commission_rate"`

	TrailingActivateR float64 `yaml:"trailing_activate_r"`
	TrailingAtrMult   float64 `yaml:"trailing_atr_mult"`
	TrailingMinMove   float64 `yaml:"trailing_min_move"`

	CooldownMinutes  int     `yaml:"cooldown_minutes"`
	MaxDailyDrawdown float64 `yaml:"max_daily_drawdown"`

	ConfirmWindow    time.Duration `yaml:"confirm_window"`
	MinConfirmations int           `yaml:"min_confirmations"`

	CacheTTL     time.Duration `yaml:"cache_ttl"`
	CacheRefresh time.Duration `yaml:"cache_refresh"`

	ATRPeriod int `yaml:"atr_period"`

	// Дефолты стратегии-скорера
	EMAShort      int     `yaml:"ema_short"`
	EMALong       int     `yaml:"ema_long"`
	RSIPeriod     int     `yaml:"rsi_period"`
	RSIOverbought float64 `yaml:"rsi_overbought"`
	RSIOSold      float64 `yaml:"rsi_oversold"`
}

func NewConfig() (*Config, error) {
	config := Config{
		Symbols:    []string{"BTCUSDT"},
		Timeframes: []string{"1m", "3m", "5m"},
		Trading: TradingConfig{
			MaxOpenPositions: intFromEnv("MAX_OPEN_POSITIONS", 5),
			Leverage:         intFromEnv("LEVERAGE", 5),
			MarginUSDT:       getenvDefault("MARGIN_USDT", "0.5"),
			FallbackMargin:   getenvDefault("FALLBACK_MARGIN_USDT", "1.0"),
			StopLossAtrMult:  floatFromEnv("STOP_LOSS_ATR_MULT", 2.5),

			TPScheme:         getenvDefault("TP_SCHEME", "pnl_pct"),
			TPPnlPercentages: []float64{50, 30, 20},
			TPRMultiples:     []float64{1, 2, 3},
			TPAllocation:     []float64{0.5, 0.25, 0.25},

			BreakEvenR:     floatFromEnv("BREAK_EVEN_R", 0.75),
			CommissionRate: floatFromEnv("COMMISSION_RATE", 0.0008),

			TrailingActivateR: floatFromEnv("TRAILING_ACTIVATE_R", 1.0),
			TrailingAtrMult:   floatFromEnv("TRAILING_ATR_MULT", 0.8),
			TrailingMinMove:   floatFromEnv("TRAILING_MIN_MOVE", 0.1),

			CooldownMinutes:  intFromEnv("COOLDOWN_MINUTES", 5),
			MaxDailyDrawdown: floatFromEnv("MAX_DAILY_DRAWDOWN", 0.03),

			ConfirmWindow:    durationFromEnv("CONFIRM_WINDOW", "300s"),
			MinConfirmations: intFromEnv("MIN_CONFIRMATIONS", 2),

			CacheTTL:     durationFromEnv("CACHE_TTL", "60s"),
			CacheRefresh: durationFromEnv("CACHE_REFRESH", "30s"),

			ATRPeriod: intFromEnv("ATR_PERIOD", 14),

			EMAShort:      intFromEnv("EMA_SHORT", 9),
			EMALong:       intFromEnv("EMA_LONG", 21),
			RSIPeriod:     intFromEnv("RSI_PERIOD", 14),
			RSIOverbought: floatFromEnv("RSI_OVERBOUGHT", 70),
			RSIOSold:      floatFromEnv("RSI_OVERSOLD", 30),
		},
	}
	config.Venue.BaseURL = "https://fapi.binance.com"
	config.Venue.WSURL = "wss://fstream.binance.com/stream"
	config.Venue.RecvWindow = 5000
	config.Service.HealthAddr = ":8080"

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}
	if k := os.Getenv(apiKeyENV); k != "" {
		config.Venue.APIKey = k
	}
	if s := os.Getenv(apiSecretENV); s != "" {
		config.Venue.APISecret = s
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// validate ловит пустое рабочее множество: yaml с `symbols: []` затирает
// дефолты, и без проверки это всплыло бы паникой при сборке графа.
func (c *Config) validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: symbols must not be empty")
	}
	if len(c.Timeframes) == 0 {
		return fmt.Errorf("config: timeframes must not be empty")
	}
	return c.Trading.normalize()
}

// normalize чинит аллокации тейков и валидирует схему.
func (t *TradingConfig) normalize() error {
	switch t.TPScheme {
	case "pnl_pct", "r_multiple":
	default:
		return fmt.Errorf("unknown tp_scheme: %q", t.TPScheme)
	}

	if len(t.TPAllocation) == 0 {
		t.TPAllocation = []float64{0.5, 0.25, 0.25}
	}

	total := 0.0
	for _, a := range t.TPAllocation {
		total += a
	}
	if total <= 0 {
		return fmt.Errorf("tp_allocation sums to %.4f", total)
	}
	if diff := total - 1.0; diff > 0.01 || diff < -0.01 {
		logger.Warn("tp_allocation sums to %.4f, normalizing to 1.0", total)
		for i := range t.TPAllocation {
			t.TPAllocation[i] /= total
		}
	}
	return nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
