package webhook

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/assist-by/piona/internal/domain"
	"github.com/assist-by/piona/internal/trading"
)

// Dispatcher는 정규화된 액션을 처리합니다
type Dispatcher interface {
	Handle(ctx context.Context, action domain.WebhookAction) (*trading.Outcome, error)
	Ready() bool
}

// AccountReader는 조회 전용 거래소 API입니다
type AccountReader interface {
	GetServerTime(ctx context.Context) (time.Time, error)
	GetBalance(ctx context.Context) (*domain.AccountInfo, error)
	GetPositions(ctx context.Context, symbol string) ([]domain.Position, error)
	GetTicker(ctx context.Context, symbol string) (*domain.Ticker, error)
}

// Config는 HTTP 서버 설정입니다
type Config struct {
	Secret       string   // 비어있으면 토큰 검사를 하지 않습니다
	MaxBodyBytes int64    // 웹훅 본문 최대 크기
	CORSOrigins  []string // 허용할 Origin 목록
	Testnet      bool
	HealthWait   time.Duration // /health 조회 타임아웃

	// /debug에 노출할 자격 증명 상태. 키 원문은 받지 않습니다
	APIKeyPrefix  string // 마스킹된 API 키
	APISecretSet  bool
	PassphraseSet bool
}

// Server는 웹훅과 조회용 REST 엔드포인트를 제공합니다
type Server struct {
	cfg        Config
	router     *mux.Router
	translator *Translator
	service    Dispatcher
	reader     AccountReader
	logger     *zap.Logger
	startedAt  time.Time
}

// NewServer는 새로운 API 서버를 생성합니다
func NewServer(cfg Config, translator *Translator, service Dispatcher, reader AccountReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.HealthWait <= 0 {
		cfg.HealthWait = 5 * time.Second
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	s := &Server{
		cfg:        cfg,
		router:     mux.NewRouter(),
		translator: translator,
		service:    service,
		reader:     reader,
		logger:     logger,
		startedAt:  time.Now(),
	}

	if cfg.Secret == "" {
		logger.Warn("WEBHOOK_SECRET이 설정되지 않아 웹훅 토큰 검사를 하지 않습니다")
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(requestIDMiddleware, s.loggingMiddleware)

	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/debug", s.handleDebug).Methods(http.MethodGet)
	s.router.HandleFunc("/webhook", s.handleWebhook).Methods(http.MethodPost)

	// 조회 엔드포인트
	s.router.HandleFunc("/balance", s.handleBalance).Methods(http.MethodGet)
	s.router.HandleFunc("/positions", s.handlePositions).Methods(http.MethodGet)
	s.router.HandleFunc("/ticker", s.handleTicker).Methods(http.MethodGet)
}

// Handler는 CORS가 적용된 http.Handler를 반환합니다
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
	})
	return c.Handler(s.router)
}

// ListenAndServe는 ctx가 끝날 때까지 서버를 실행하고, 끝나면 정상 종료합니다
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("웹훅 서버 시작", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	s.logger.Info("웹훅 서버 종료 중")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"service":       "piona",
		"status":        "running",
		"testnet":       s.cfg.Testnet,
		"trading_ready": s.service.Ready(),
		"uptime":        time.Since(s.startedAt).Round(time.Second).String(),
		"endpoints":     []string{"POST /webhook", "GET /health", "GET /debug", "GET /balance", "GET /positions", "GET /ticker"},
	})
}

// handleDebug는 자격 증명 설정 여부와 클라이언트 상태를 보여줍니다
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"api_key_set":        s.cfg.APIKeyPrefix != "",
		"api_key_prefix":     s.cfg.APIKeyPrefix,
		"api_secret_set":     s.cfg.APISecretSet,
		"passphrase_set":     s.cfg.PassphraseSet,
		"testnet":            s.cfg.Testnet,
		"trading_ready":      s.service.Ready(),
		"client_initialized": s.reader != nil,
	})
}

// handleHealth는 거래소 공개 API와 인증 API를 동시에 확인합니다
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthWait)
	defer cancel()

	var (
		serverTime time.Time
		publicErr  error
		privateErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		serverTime, publicErr = s.reader.GetServerTime(gctx)
		return nil
	})
	g.Go(func() error {
		_, privateErr = s.reader.GetBalance(gctx)
		return nil
	})
	_ = g.Wait()

	checks := map[string]string{
		"exchange_public":  checkStatus(publicErr),
		"exchange_private": checkStatus(privateErr),
	}

	status, code := "healthy", http.StatusOK
	if publicErr != nil || privateErr != nil {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	resp := map[string]interface{}{
		"status":        status,
		"checks":        checks,
		"trading_ready": s.service.Ready(),
	}
	if !serverTime.IsZero() {
		resp["server_time"] = serverTime.UTC().Format(time.RFC3339Nano)
	}
	respondJSON(w, code, resp)
}

func checkStatus(err error) string {
	if err != nil {
		return "error: " + publicMessage(err)
	}
	return "ok"
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With(zap.String("request_id", requestIDFrom(r.Context())))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "본문을 읽을 수 없습니다")
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		respondError(w, http.StatusBadRequest, "본문이 비어있습니다")
		return
	}

	token, err := extractToken(body)
	if err != nil {
		respondError(w, statusFor(err), publicMessage(err))
		return
	}
	if !s.authorized(token) {
		logger.Warn("웹훅 토큰 불일치", zap.String("remote", r.RemoteAddr))
		respondError(w, http.StatusForbidden, domain.ErrAuth.Error())
		return
	}

	action, err := s.translator.Translate(body)
	if err != nil {
		logger.Info("웹훅 페이로드 거부", zap.Error(err))
		respondError(w, statusFor(err), publicMessage(err))
		return
	}

	logger.Info("웹훅 수신",
		zap.String("action", action.RawAction),
		zap.Stringer("kind", action.Kind),
		zap.String("symbol", action.Symbol),
		zap.String("qty", action.Quantity.String()),
	)

	switch action.Kind {
	case domain.ActionTest:
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":        "success",
			"message":       "test ok",
			"trading_ready": s.service.Ready(),
		})
		return
	case domain.ActionUnknown:
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ignored",
			"message": "알 수 없는 액션: " + action.RawAction,
		})
		return
	}

	outcome, err := s.service.Handle(r.Context(), action)
	if err != nil {
		logger.Error("웹훅 처리 실패",
			zap.Stringer("kind", action.Kind),
			zap.String("symbol", action.Symbol),
			zap.Error(err),
		)
		resp := map[string]interface{}{
			"status":  "error",
			"message": publicMessage(err),
		}
		if outcome != nil && outcome.Close != nil {
			resp["result"] = newCloseView(outcome.Close)
		}
		respondJSON(w, statusFor(err), resp)
		return
	}

	if outcome.Close != nil {
		if outcome.Close.NoPosition {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"status":  "no_position",
				"action":  action.Kind.String(),
				"symbol":  action.Symbol,
				"message": outcome.Close.Message,
			})
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status": "success",
			"action": action.Kind.String(),
			"symbol": action.Symbol,
			"result": newCloseView(outcome.Close),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"action": action.Kind.String(),
		"symbol": action.Symbol,
		"result": outcome.Order,
	})
}

// authorized는 토큰을 상수 시간에 비교합니다
func (s *Server) authorized(token string) bool {
	if s.cfg.Secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Secret)) == 1
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	info, err := s.reader.GetBalance(r.Context())
	if err != nil {
		respondError(w, statusFor(err), publicMessage(err))
		return
	}

	balances := make(map[string]balanceView, len(info.Balances))
	for ccy, b := range info.Balances {
		balances[ccy] = balanceView{
			Available: b.Available.String(),
			Frozen:    b.Frozen.String(),
			Equity:    b.Equity.String(),
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "success",
		"total_equity": info.TotalEquity.String(),
		"balances":     balances,
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))

	positions, err := s.reader.GetPositions(r.Context(), symbol)
	if err != nil {
		respondError(w, statusFor(err), publicMessage(err))
		return
	}

	views := make([]positionView, 0, len(positions))
	for _, p := range positions {
		if p.IsOpen() {
			views = append(views, newPositionView(p))
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"positions": views,
	})
}

func (s *Server) handleTicker(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		respondError(w, http.StatusBadRequest, "symbol 파라미터가 필요합니다")
		return
	}

	ticker, err := s.reader.GetTicker(r.Context(), symbol)
	if err != nil {
		respondError(w, statusFor(err), publicMessage(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"symbol":  symbol,
		"inst_id": ticker.InstID,
		"last":    ticker.Last.String(),
		"bid":     ticker.Bid.String(),
		"ask":     ticker.Ask.String(),
	})
}
