package worker

import (
	"context"
	"errors"
	"time"

	"github.com/checkout-next/internal/config"
	"github.com/checkout-next/internal/logger"
	"github.com/checkout-next/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	defaultSweepInterval = time.Hour
)

// Service 异步队列服务
type Service struct {
	name          string
	server        *asynq.Server
	mux           *asynq.ServeMux
	consumer      *Consumer
	sweepInterval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer, sweepInterval time.Duration) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:          "worker",
		server:        server,
		mux:           mux,
		consumer:      consumer,
		sweepInterval: sweepInterval,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.Container != nil {
		go s.runSweepLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runSweepLoop 周期投递清理任务，多实例时依赖 asynq.Unique 去重
func (s *Service) runSweepLoop(ctx context.Context) {
	runOnce := func() {
		enqueueSweeps(s.consumer.QueueClient, s.sweepInterval)
	}
	runOnce()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

func enqueueSweeps(client *queue.Client, window time.Duration) int {
	if client == nil || !client.Enabled() {
		logger.Debugw("worker_sweep_skip_queue_disabled")
		return 0
	}
	enqueued := 0
	for _, taskType := range []string{queue.TaskCheckoutDeleteExpired, queue.TaskGiftCardDeactivateExpired} {
		if err := client.EnqueueSweep(taskType, queue.SweepPayload{}, window); err != nil {
			logger.Warnw("worker_sweep_enqueue_failed", "task", taskType, "error", err)
			continue
		}
		enqueued++
	}
	return enqueued
}
