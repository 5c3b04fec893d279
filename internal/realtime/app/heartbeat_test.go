package app

import (
	"testing"
	"time"

	"social_realtime_client/internal/realtime/domain"

	"github.com/stretchr/testify/assert"
)

// 測試心跳定期送出 liveness ping
func TestHeartbeat_Ticks(t *testing.T) {
	bus := newFakeBus()
	h := NewHeartbeat(bus, 20*time.Millisecond)

	h.Start()
	defer h.Stop()

	assert.Eventually(t, func() bool {
		return len(bus.emittedEvents(domain.EventHeartbeat)) >= 2
	}, time.Second, 10*time.Millisecond)
}

// Stop 之後不能再送，避免計時器跨 identity 外洩
func TestHeartbeat_StopCancelsTimer(t *testing.T) {
	bus := newFakeBus()
	h := NewHeartbeat(bus, 20*time.Millisecond)

	h.Start()
	assert.Eventually(t, func() bool {
		return len(bus.emittedEvents(domain.EventHeartbeat)) >= 1
	}, time.Second, 10*time.Millisecond)

	h.Stop()
	// 讓已經在路上的 tick 落地
	time.Sleep(30 * time.Millisecond)
	count := len(bus.emittedEvents(domain.EventHeartbeat))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, count, len(bus.emittedEvents(domain.EventHeartbeat)))
}

// 沒有連線時 Emit 失敗只記 log，ticker 繼續跑
func TestHeartbeat_EmitFailureNonFatal(t *testing.T) {
	bus := newFakeBus()
	bus.emitErr = assert.AnError
	h := NewHeartbeat(bus, 10*time.Millisecond)

	h.Start()
	defer h.Stop()
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, bus.emittedEvents(domain.EventHeartbeat))
}
