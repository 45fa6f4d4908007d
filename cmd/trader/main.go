package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	osSignal "os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/assist-by/piona/internal/config"
	"github.com/assist-by/piona/internal/domain"
	"github.com/assist-by/piona/internal/exchange"
	"github.com/assist-by/piona/internal/exchange/okx"
	"github.com/assist-by/piona/internal/instrument"
	"github.com/assist-by/piona/internal/logger"
	"github.com/assist-by/piona/internal/notification/discord"
	"github.com/assist-by/piona/internal/position"
	"github.com/assist-by/piona/internal/scheduler"
	"github.com/assist-by/piona/internal/trading"
	"github.com/assist-by/piona/internal/transport"
	"github.com/assist-by/piona/internal/webhook"
)

// 서버 시간 재동기화 주기와 실패 시 재시도 간격
const (
	timeSyncInterval      = time.Hour
	timeSyncRetryInterval = 30 * time.Second
)

// TimeSyncTask는 거래소 서버 시간과의 차이를 주기적으로 보정합니다
type TimeSyncTask struct {
	client  exchange.Exchange
	service *trading.Service
	logger  *zap.Logger
}

// Execute는 시간 동기화 작업을 실행합니다.
// 첫 동기화가 성공해야 거래 가능 상태로 전환됩니다.
func (t *TimeSyncTask) Execute(ctx context.Context) error {
	if err := t.client.SyncTime(ctx); err != nil {
		return err
	}
	if !t.service.Ready() {
		t.service.SetReady(true)
		t.logger.Info("서버 시간 동기화 완료, 거래 가능")
	}
	return nil
}

func main() {
	// 명령줄 플래그 정의
	checkFlag := flag.Bool("check", false, "거래소 연결과 인증만 확인하고 종료")
	flag.Parse()

	// 설정 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("설정 로드 실패: %v", err)
	}

	zl, err := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		Encoding:   cfg.Log.Encoding,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		log.Fatalf("로거 생성 실패: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl, *checkFlag); err != nil {
		zl.Error("프로그램 비정상 종료", zap.Error(err))
		_ = zl.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, zl *zap.Logger, checkOnly bool) error {
	ctx, stop := osSignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zl.Info("트레이딩 서버 시작",
		zap.Bool("testnet", cfg.OKX.Testnet),
		zap.String("api_key", config.MaskKey(cfg.OKX.APIKey)),
		zap.String("market_type", string(cfg.MarketType())),
		zap.String("position_mode", string(cfg.PositionMode())),
		zap.Int("proxies", len(cfg.Transport.Proxies)),
	)

	signer, err := okx.NewSigner(cfg.OKX.APIKey, cfg.OKX.SecretKey, cfg.OKX.Passphrase,
		okx.WithSimulatedTrading(cfg.OKX.Testnet),
	)
	if err != nil {
		return err
	}

	tr, err := transport.NewResilient(transport.Options{
		Timeout:       cfg.Transport.Timeout,
		Proxies:       cfg.Transport.Proxies,
		ProbeURL:      cfg.Transport.ProbeURL,
		ProbeTimeout:  cfg.Transport.ProbeTimeout,
		MaxCandidates: cfg.Transport.MaxCandidates,
		JitterMin:     cfg.Transport.JitterMin,
		JitterMax:     cfg.Transport.JitterMax,
	}, zl.Named("transport"))
	if err != nil {
		return fmt.Errorf("전송 계층 생성 실패: %w", err)
	}
	defer transport.CloseIdle(tr)

	client := okx.NewClient(signer, tr,
		okx.WithBaseURL(cfg.OKX.BaseURL),
		okx.WithRateLimit(cfg.OKX.RateLimit, cfg.OKX.RateBurst),
		okx.WithMarketType(cfg.MarketType()),
		okx.WithLogger(zl.Named("okx")),
	)

	if checkOnly {
		return checkExchange(ctx, client, zl)
	}

	rules := instrument.NewCache(client, zl.Named("instrument"), instrument.WithMarketType(cfg.MarketType()))
	executor := trading.NewExecutor(rules, client, trading.ExecutorOptions{
		MarginMode:   cfg.MarginMode(),
		PositionMode: cfg.PositionMode(),
	}, zl.Named("executor"))
	reconciler := position.NewReconciler(client, client, zl.Named("position"))

	opts := []trading.ServiceOption{trading.WithMarketType(cfg.MarketType())}
	discordClient := discord.NewClient(cfg.Discord.TradeWebhook, cfg.Discord.ErrorWebhook,
		discord.WithTimeout(10*time.Second),
	)
	if discordClient.Enabled() {
		opts = append(opts, trading.WithNotifier(discordClient))
	}
	service := trading.NewService(executor, reconciler, zl.Named("trading"), opts...)

	timeSync := scheduler.NewScheduler("time_sync", timeSyncInterval,
		&TimeSyncTask{client: client, service: service, logger: zl},
		scheduler.WithImmediate(),
		scheduler.WithRetry(timeSyncRetryInterval),
		scheduler.WithLogger(zl.Named("scheduler")),
	)
	go func() { _ = timeSync.Start(ctx) }()

	server := webhook.NewServer(webhook.Config{
		Secret:       cfg.Webhook.Secret,
		MaxBodyBytes: cfg.Webhook.MaxBodyBytes,
		CORSOrigins:  cfg.Webhook.CORSOrigins,
		Testnet:      cfg.OKX.Testnet,

		APIKeyPrefix:  config.MaskKey(cfg.OKX.APIKey),
		APISecretSet:  cfg.OKX.SecretKey != "",
		PassphraseSet: cfg.OKX.Passphrase != "",
	}, webhook.NewTranslator(cfg.Trading.DefaultQuantity), service, client, zl.Named("webhook"))

	if discordClient.Enabled() {
		mode := "⚠️ 메인넷 모드로 실행 중입니다. 실제 자산이 사용됩니다!"
		if cfg.OKX.Testnet {
			mode = "⚠️ 테스트넷 모드로 실행 중입니다. 실제 자산은 사용되지 않습니다."
		}
		if err := discordClient.SendInfo("🚀 트레이딩 서버가 시작되었습니다.\n" + mode); err != nil {
			zl.Warn("시작 알림 전송 실패", zap.Error(err))
		}
	}

	if err := server.ListenAndServe(ctx, ":"+strconv.Itoa(cfg.Webhook.Port)); err != nil {
		return fmt.Errorf("웹훅 서버 실행 실패: %w", err)
	}

	if discordClient.Enabled() {
		if err := discordClient.SendInfo("👋 트레이딩 서버가 정상적으로 종료되었습니다."); err != nil {
			zl.Warn("종료 알림 전송 실패", zap.Error(err))
		}
	}
	zl.Info("프로그램을 종료합니다")
	return nil
}

// checkExchange는 공개 API와 인증 API를 한 번씩 호출해 봅니다
func checkExchange(ctx context.Context, client exchange.Exchange, zl *zap.Logger) error {
	if err := client.SyncTime(ctx); err != nil {
		return fmt.Errorf("서버 시간 조회 실패: %w", err)
	}

	info, err := client.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("잔고 조회 실패: %w", err)
	}

	usdt, ok := info.Balances["USDT"]
	if !ok {
		usdt = domain.Balance{Currency: "USDT"}
	}
	zl.Info("거래소 연결 확인 완료",
		zap.String("total_equity", info.TotalEquity.String()),
		zap.String("usdt_available", usdt.Available.String()),
	)
	return nil
}
