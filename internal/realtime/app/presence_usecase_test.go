package app

import (
	"encoding/json"
	"testing"

	"social_realtime_client/internal/realtime/domain"

	"github.com/stretchr/testify/assert"
)

// 測試 snapshot 與 delta 交錯後 IsOnline 反映最後一個事件
func TestPresenceUseCase_SnapshotAndDeltas(t *testing.T) {
	bus := newFakeBus()
	uc := NewPresenceUseCase(bus)
	defer uc.Close()

	bus.Push(domain.EventOnlineUsers, []string{"user-1", "user-2"})
	assert.True(t, uc.IsOnline("user-1"))
	assert.True(t, uc.IsOnline("user-2"))
	assert.False(t, uc.IsOnline("user-3"))

	bus.Push(domain.EventUserStatus, domain.UserStatusPayload{UserID: "user-3", IsOnline: true})
	assert.True(t, uc.IsOnline("user-3"))

	bus.Push(domain.EventUserStatus, domain.UserStatusPayload{UserID: "user-1", IsOnline: false})
	assert.False(t, uc.IsOnline("user-1"))

	// snapshot 全量替換
	bus.Push(domain.EventOnlineUsers, []string{"user-9"})
	assert.False(t, uc.IsOnline("user-2"))
	assert.False(t, uc.IsOnline("user-3"))
	assert.True(t, uc.IsOnline("user-9"))
	assert.Equal(t, []string{"user-9"}, uc.OnlineUsers())
}

// 測試 map 形式的 snapshot payload
func TestPresenceUseCase_MapSnapshot(t *testing.T) {
	bus := newFakeBus()
	uc := NewPresenceUseCase(bus)
	defer uc.Close()

	bus.Push(domain.EventOnlineUsers, map[string]bool{"user-1": true, "user-2": false})
	assert.True(t, uc.IsOnline("user-1"))
	assert.False(t, uc.IsOnline("user-2"))
}

// 重覆上線/移除不存在的 id 都是 no-op
func TestPresenceUseCase_Idempotent(t *testing.T) {
	bus := newFakeBus()
	uc := NewPresenceUseCase(bus)
	defer uc.Close()

	bus.Push(domain.EventUserStatus, domain.UserStatusPayload{UserID: "user-1", IsOnline: true})
	bus.Push(domain.EventUserStatus, domain.UserStatusPayload{UserID: "user-1", IsOnline: true})
	assert.Equal(t, []string{"user-1"}, uc.OnlineUsers())

	bus.Push(domain.EventUserStatus, domain.UserStatusPayload{UserID: "user-7", IsOnline: false})
	assert.Equal(t, []string{"user-1"}, uc.OnlineUsers())
}

// 壞掉的 payload 記錄後忽略，不影響現有集合
func TestPresenceUseCase_BadPayloadIgnored(t *testing.T) {
	bus := newFakeBus()
	uc := NewPresenceUseCase(bus)
	defer uc.Close()

	bus.Push(domain.EventOnlineUsers, []string{"user-1"})
	bus.PushRaw(domain.EventOnlineUsers, json.RawMessage(`"not a list"`))
	assert.True(t, uc.IsOnline("user-1"))
}

// 斷線清空，重連後 snapshot 重建
func TestPresenceUseCase_ClearOnDisconnect(t *testing.T) {
	bus := newFakeBus()
	uc := NewPresenceUseCase(bus)
	defer uc.Close()

	bus.Push(domain.EventOnlineUsers, []string{"user-1", "user-2"})
	uc.Clear()
	assert.Empty(t, uc.OnlineUsers())

	bus.Push(domain.EventOnlineUsers, []string{"user-2"})
	assert.Equal(t, []string{"user-2"}, uc.OnlineUsers())
}
