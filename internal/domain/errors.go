package domain

import (
	"errors"
	"fmt"
)

// 에러 분류. 경계 계층은 errors.Is로 HTTP 상태 코드를 결정합니다
var (
	ErrConfig     = errors.New("설정 오류")
	ErrValidation = errors.New("유효성 검사 실패")
	ErrAuth       = errors.New("인증 실패")
	ErrTransport  = errors.New("네트워크 요청 실패")
	ErrExchange   = errors.New("거래소 오류")
	ErrNoPosition = errors.New("청산할 포지션이 없습니다")
)

// ExchangeError는 거래소가 성공이 아닌 코드를 반환한 경우입니다
type ExchangeError struct {
	Code    string
	Message string
}

// Error는 error 인터페이스를 구현합니다
func (e *ExchangeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("거래소 오류(코드: %s)", e.Code)
	}
	return fmt.Sprintf("거래소 오류(코드: %s): %s", e.Code, e.Message)
}

// Unwrap은 ErrExchange를 반환합니다 (errors.Is 지원)
func (e *ExchangeError) Unwrap() error {
	return ErrExchange
}

// NewValidationError는 ErrValidation을 감싼 에러를 생성합니다
func NewValidationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ExchangeMessage는 에러 체인에서 거래소 메시지를 꺼냅니다
func ExchangeMessage(err error) (string, bool) {
	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return exErr.Message, true
	}
	return "", false
}
