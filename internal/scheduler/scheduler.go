package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Task는 스케줄러가 실행할 작업을 정의하는 인터페이스입니다
type Task interface {
	Execute(ctx context.Context) error
}

// TaskFunc는 함수를 Task로 사용할 수 있게 합니다
type TaskFunc func(ctx context.Context) error

// Execute는 Task 인터페이스를 구현합니다
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Scheduler는 정해진 간격의 경계 시각마다 작업을 실행하는 스케줄러입니다
type Scheduler struct {
	name      string
	interval  time.Duration
	retry     time.Duration
	immediate bool
	task      Task
	logger    *zap.Logger
	stopCh    chan struct{}
}

// Option은 Scheduler 옵션입니다
type Option func(*Scheduler)

// WithImmediate는 Start 직후 작업을 한 번 실행하도록 설정합니다
func WithImmediate() Option {
	return func(s *Scheduler) {
		s.immediate = true
	}
}

// WithRetry는 작업이 실패했을 때 다음 경계 대신 d 후에 다시 실행하도록 설정합니다
func WithRetry(d time.Duration) Option {
	return func(s *Scheduler) {
		s.retry = d
	}
}

// WithLogger는 로거를 설정합니다
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler는 새로운 스케줄러를 생성합니다
func NewScheduler(name string, interval time.Duration, task Task, opts ...Option) *Scheduler {
	s := &Scheduler{
		name:     name,
		interval: interval,
		task:     task,
		logger:   zap.NewNop(),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start는 ctx가 끝나거나 Stop이 호출될 때까지 작업을 반복합니다
func (s *Scheduler) Start(ctx context.Context) error {
	wait := s.untilNextRun()
	if s.immediate {
		wait = 0
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.stopCh:
			return nil

		case <-timer.C:
			wait = s.untilNextRun()

			// 에러가 발생해도 계속 실행
			if err := s.task.Execute(ctx); err != nil {
				if s.retry > 0 && s.retry < wait {
					wait = s.retry
				}
				s.logger.Warn("작업 실행 실패",
					zap.String("task", s.name),
					zap.Duration("next_in", wait),
					zap.Error(err),
				)
			} else {
				s.logger.Debug("작업 실행 완료",
					zap.String("task", s.name),
					zap.Duration("next_in", wait.Round(time.Second)),
				)
			}

			timer.Reset(wait)
		}
	}
}

// Stop은 스케줄러를 중지합니다
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) untilNextRun() time.Duration {
	now := time.Now()
	return now.Truncate(s.interval).Add(s.interval).Sub(now)
}
