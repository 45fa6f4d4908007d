// Package instrument는 심볼별 거래 규칙(최소 수량, 수량 단위)을 캐시합니다.
package instrument

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/assist-by/piona/internal/domain"
)

// 거래소 조회에 실패했을 때 사용하는 기본 규칙
var (
	DefaultSwapSize = decimal.RequireFromString("0.001")
	DefaultSpotSize = decimal.RequireFromString("0.00001")
)

// Fetcher는 거래소에서 거래 규칙을 조회합니다
type Fetcher interface {
	GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error)
}

// Cache는 프로세스 수명 동안 유지되는 읽기 전용 규칙 캐시입니다.
// 조회 실패 시 기본값을 반환하되 캐시에는 저장하지 않습니다.
type Cache struct {
	fetcher     Fetcher
	defaultType domain.MarketType
	logger      *zap.Logger

	mu    sync.RWMutex
	rules map[string]domain.Instrument
	group singleflight.Group
}

// Option은 Cache 생성 옵션입니다
type Option func(*Cache)

// WithMarketType은 기본값 계산에 사용할 상품 유형을 설정합니다
func WithMarketType(t domain.MarketType) Option {
	return func(c *Cache) {
		if t != "" {
			c.defaultType = t
		}
	}
}

// NewCache는 새로운 규칙 캐시를 생성합니다
func NewCache(fetcher Fetcher, logger *zap.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{
		fetcher:     fetcher,
		defaultType: domain.LinearSwap,
		logger:      logger,
		rules:       make(map[string]domain.Instrument),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetRules는 심볼의 거래 규칙을 반환합니다. 실패하지 않습니다.
func (c *Cache) GetRules(ctx context.Context, symbol string) domain.Instrument {
	key := strings.ToUpper(strings.TrimSpace(symbol))

	c.mu.RLock()
	inst, ok := c.rules[key]
	c.mu.RUnlock()
	if ok {
		return inst
	}

	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		return c.fill(ctx, key), nil
	})
	return v.(domain.Instrument)
}

// Len은 캐시된 심볼 수를 반환합니다
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rules)
}

func (c *Cache) fill(ctx context.Context, key string) domain.Instrument {
	// 앞선 조회가 끝난 직후 들어온 호출은 다시 조회하지 않습니다
	c.mu.RLock()
	cached, ok := c.rules[key]
	c.mu.RUnlock()
	if ok {
		return cached
	}

	inst, err := c.fetcher.GetInstrument(ctx, key)
	if err == nil && inst != nil && inst.LotSize.IsPositive() {
		inst.Symbol = key
		c.mu.Lock()
		c.rules[key] = *inst
		c.mu.Unlock()
		return *inst
	}

	fallback := c.Default(key)
	c.logger.Warn("거래 규칙 조회 실패, 기본값 사용",
		zap.String("symbol", key),
		zap.String("inst_id", fallback.InstID),
		zap.String("min_size", fallback.MinSize.String()),
		zap.String("lot_size", fallback.LotSize.String()),
		zap.Error(err),
	)
	return fallback
}

// Default는 심볼에 대한 기본 거래 규칙을 반환합니다
func (c *Cache) Default(symbol string) domain.Instrument {
	instID, marketType := domain.ResolveInstID(symbol, c.defaultType)
	size := DefaultSwapSize
	if marketType == domain.Spot {
		size = DefaultSpotSize
	}
	return domain.Instrument{
		Symbol:     strings.ToUpper(strings.TrimSpace(symbol)),
		InstID:     instID,
		MinSize:    size,
		LotSize:    size,
		MarketType: marketType,
		IsDefault:  true,
	}
}
