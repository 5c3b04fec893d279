package app

import (
	"context"
	"sync"
	"time"

	"social_realtime_client/internal/realtime/domain"
	"social_realtime_client/pkg/logger"

	"go.uber.org/zap"
)

// DefaultHeartbeatInterval server presence timeout 前回報一次
const DefaultHeartbeatInterval = 2 * time.Minute

// Heartbeat 定期送出 liveness ping，避免 server 把活著的連線判定離線
type Heartbeat struct {
	bus      EventBus
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewHeartbeat create Heartbeat
func NewHeartbeat(bus EventBus, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeat{bus: bus, interval: interval}
}

// Start begin the periodic ping. Starting twice restarts the timer.
func (h *Heartbeat) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	ticker := time.NewTicker(h.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := h.bus.Emit(domain.EventHeartbeat, nil); err != nil {
					// 離線時跳過，重連後下一個 tick 再送
					logger.Log.Debug("heartbeat skipped", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancel the timer. Identity 變更或 teardown 時必須呼叫，避免計時器外洩
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}
