package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/assist-by/piona/internal/domain"
)

type Config struct {
	// OKX API 설정
	OKX struct {
		APIKey     string  `envconfig:"OKX_API_KEY" required:"true"`
		SecretKey  string  `envconfig:"OKX_SECRET_KEY" required:"true"`
		Passphrase string  `envconfig:"OKX_PASSPHRASE" required:"true"`
		Testnet    bool    `envconfig:"OKX_TESTNET" default:"true"`
		BaseURL    string  `envconfig:"OKX_BASE_URL" default:"https://www.okx.com"`
		RateLimit  float64 `envconfig:"OKX_RATE_LIMIT" default:"10"`
		RateBurst  int     `envconfig:"OKX_RATE_BURST" default:"5"`
		SymbolType string  `envconfig:"DEFAULT_SYMBOL_TYPE" default:"swap"`
	}

	// 전송 계층 설정
	Transport struct {
		Timeout       time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
		Proxies       []string      `envconfig:"PROXY_LIST"`
		ProbeURL      string        `envconfig:"PROXY_PROBE_URL" default:"https://www.okx.com/api/v5/public/time"`
		ProbeTimeout  time.Duration `envconfig:"PROXY_PROBE_TIMEOUT" default:"5s"`
		MaxCandidates int           `envconfig:"PROXY_MAX_CANDIDATES" default:"3"`
		JitterMin     time.Duration `envconfig:"JITTER_MIN" default:"1s"`
		JitterMax     time.Duration `envconfig:"JITTER_MAX" default:"3s"`
	}

	// 웹훅 서버 설정
	Webhook struct {
		Secret       string   `envconfig:"WEBHOOK_SECRET"`
		Port         int      `envconfig:"PORT" default:"10000"`
		CORSOrigins  []string `envconfig:"CORS_ORIGINS" default:"*"`
		MaxBodyBytes int64    `envconfig:"WEBHOOK_MAX_BODY_BYTES" default:"1048576"`
	}

	// 거래 설정
	Trading struct {
		DefaultQuantity   decimal.Decimal `envconfig:"DEFAULT_QUANTITY" default:"0.001"`
		DefaultMarginMode string          `envconfig:"DEFAULT_MARGIN_MODE" default:"cross"`
		PositionMode      string          `envconfig:"POSITION_MODE" default:"net"`
	}

	// 로그 설정
	Log struct {
		Level      string `envconfig:"LOG_LEVEL" default:"info"`
		Encoding   string `envconfig:"LOG_ENCODING" default:"console"`
		File       string `envconfig:"LOG_FILE"`
		MaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"100"`
		MaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"5"`
		MaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"28"`
	}

	// 디스코드 웹훅 설정 (선택)
	Discord struct {
		TradeWebhook string `envconfig:"DISCORD_TRADE_WEBHOOK"`
		ErrorWebhook string `envconfig:"DISCORD_ERROR_WEBHOOK"`
	}
}

// MarketType은 기본 상품 유형을 반환합니다
func (c *Config) MarketType() domain.MarketType {
	if strings.EqualFold(c.OKX.SymbolType, "spot") {
		return domain.Spot
	}
	return domain.LinearSwap
}

// MarginMode는 기본 증거금 모드를 반환합니다
func (c *Config) MarginMode() domain.MarginMode {
	mode, ok := domain.ParseMarginMode(c.Trading.DefaultMarginMode)
	if !ok {
		return domain.Cross
	}
	return mode
}

// PositionMode는 계정 포지션 모드를 반환합니다
func (c *Config) PositionMode() domain.PositionMode {
	switch strings.ToLower(c.Trading.PositionMode) {
	case "long_short", "long_short_mode", "hedge":
		return domain.LongShortMode
	}
	return domain.NetMode
}

// ValidateConfig는 설정이 유효한지 확인합니다.
func ValidateConfig(cfg *Config) error {
	var err error

	if strings.TrimSpace(cfg.OKX.SecretKey) == "" {
		err = multierr.Append(err, errors.New("OKX_SECRET_KEY가 비어 있습니다"))
	}
	if strings.TrimSpace(cfg.OKX.APIKey) == "" {
		err = multierr.Append(err, errors.New("OKX_API_KEY가 비어 있습니다"))
	}
	if cfg.OKX.RateLimit <= 0 {
		err = multierr.Append(err, errors.New("OKX_RATE_LIMIT은 0보다 커야 합니다"))
	}
	if cfg.OKX.RateBurst < 1 {
		err = multierr.Append(err, errors.New("OKX_RATE_BURST는 1 이상이어야 합니다"))
	}
	switch strings.ToLower(cfg.OKX.SymbolType) {
	case "swap", "spot":
	default:
		err = multierr.Append(err, fmt.Errorf("DEFAULT_SYMBOL_TYPE은 swap 또는 spot이어야 합니다: %q", cfg.OKX.SymbolType))
	}

	if cfg.Transport.Timeout < 5*time.Second || cfg.Transport.Timeout > 15*time.Second {
		err = multierr.Append(err, errors.New("REQUEST_TIMEOUT은 5초 이상 15초 이하이어야 합니다"))
	}
	if cfg.Transport.ProbeTimeout <= 0 {
		err = multierr.Append(err, errors.New("PROXY_PROBE_TIMEOUT은 0보다 커야 합니다"))
	}
	if cfg.Transport.MaxCandidates < 1 {
		err = multierr.Append(err, errors.New("PROXY_MAX_CANDIDATES는 1 이상이어야 합니다"))
	}
	if cfg.Transport.JitterMin < 0 || cfg.Transport.JitterMax < cfg.Transport.JitterMin {
		err = multierr.Append(err, errors.New("JITTER_MIN/JITTER_MAX 범위가 올바르지 않습니다"))
	}

	if cfg.Webhook.Port < 1 || cfg.Webhook.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("PORT 범위가 올바르지 않습니다: %d", cfg.Webhook.Port))
	}
	if cfg.Webhook.MaxBodyBytes <= 0 {
		err = multierr.Append(err, errors.New("WEBHOOK_MAX_BODY_BYTES는 0보다 커야 합니다"))
	}

	if !cfg.Trading.DefaultQuantity.IsPositive() {
		err = multierr.Append(err, errors.New("DEFAULT_QUANTITY는 0보다 커야 합니다"))
	}
	if _, ok := domain.ParseMarginMode(cfg.Trading.DefaultMarginMode); !ok {
		err = multierr.Append(err, fmt.Errorf("DEFAULT_MARGIN_MODE가 올바르지 않습니다: %q", cfg.Trading.DefaultMarginMode))
	}
	switch strings.ToLower(cfg.Trading.PositionMode) {
	case "net", "net_mode", "long_short", "long_short_mode", "hedge":
	default:
		err = multierr.Append(err, fmt.Errorf("POSITION_MODE가 올바르지 않습니다: %q", cfg.Trading.PositionMode))
	}

	if cfg.Log.Level == "" {
		err = multierr.Append(err, errors.New("LOG_LEVEL이 비어 있습니다"))
	}

	return err
}

// LoadConfig는 환경변수에서 설정을 로드합니다.
// 실패는 모두 domain.ErrConfig로 감싸며 시작 단계에서 치명적입니다.
func LoadConfig() (*Config, error) {
	// .env 파일이 있으면 우선 로드
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: .env 파일 로드 실패: %w", domain.ErrConfig, err)
	}

	var cfg Config
	// 환경변수를 구조체로 파싱
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: 환경변수 처리 실패: %w", domain.ErrConfig, err)
	}

	// 설정값 검증
	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("%w: 설정값 검증 실패: %w", domain.ErrConfig, err)
	}

	return &cfg, nil
}

// MaskKey는 로그 출력용으로 키 앞부분만 남깁니다
func MaskKey(key string) string {
	const visible = 8
	if key == "" {
		return ""
	}
	if len(key) <= visible {
		return key[:1] + "…"
	}
	return key[:visible] + "…"
}
