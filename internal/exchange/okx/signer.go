package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/assist-by/piona/internal/domain"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// Signer는 OKX 인증 헤더를 생성합니다
type Signer struct {
	apiKey     string
	secretKey  string
	passphrase string
	testnet    bool
	now        func() time.Time

	mu     sync.RWMutex
	offset time.Duration // 서버 시간과의 차이
}

// SignerOption은 Signer 생성 옵션입니다
type SignerOption func(*Signer)

// WithSimulatedTrading은 모의 거래 헤더 사용 여부를 설정합니다
func WithSimulatedTrading(enabled bool) SignerOption {
	return func(s *Signer) {
		s.testnet = enabled
	}
}

// WithClock은 현재 시각 함수를 교체합니다 (테스트용)
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner는 새로운 Signer를 생성합니다.
// API 키나 시크릿이 없으면 ErrConfig를 반환합니다.
func NewSigner(apiKey, secretKey, passphrase string, opts ...SignerOption) (*Signer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: API 키가 설정되지 않았습니다", domain.ErrConfig)
	}
	if strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("%w: 시크릿 키가 설정되지 않았습니다", domain.ErrConfig)
	}

	s := &Signer{
		apiKey:     apiKey,
		secretKey:  secretKey,
		passphrase: passphrase,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetOffset은 서버 시간 오프셋을 기록합니다
func (s *Signer) SetOffset(offset time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = offset
}

// Offset은 현재 기록된 서버 시간 오프셋을 반환합니다
func (s *Signer) Offset() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

// Timestamp는 오프셋이 반영된 UTC ISO-8601 타임스탬프(밀리초)를 반환합니다
func (s *Signer) Timestamp() string {
	return s.now().Add(s.Offset()).UTC().Format(timestampLayout)
}

// Sign은 timestamp + METHOD + path + body 에 대한 HMAC-SHA256 서명을 base64로 반환합니다.
// path는 쿼리 문자열을 포함해야 합니다.
func (s *Signer) Sign(timestamp, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(s.secretKey))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(strings.ToUpper(method)))
	mac.Write([]byte(path))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Headers는 서명된 요청 헤더를 생성합니다
func (s *Signer) Headers(method, path string, body []byte) http.Header {
	timestamp := s.Timestamp()

	h := s.PublicHeaders()
	h.Set("OK-ACCESS-KEY", s.apiKey)
	h.Set("OK-ACCESS-SIGN", s.Sign(timestamp, method, path, body))
	h.Set("OK-ACCESS-TIMESTAMP", timestamp)
	if s.passphrase != "" {
		h.Set("OK-ACCESS-PASSPHRASE", s.passphrase)
	}
	return h
}

// PublicHeaders는 인증이 필요 없는 요청의 헤더를 생성합니다
func (s *Signer) PublicHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	if s.testnet {
		h.Set("x-simulated-trading", "1")
	}
	return h
}
