package app

import (
	"encoding/json"
	"sort"
	"sync"

	"social_realtime_client/internal/realtime/domain"
	"social_realtime_client/internal/realtime/transport"
	"social_realtime_client/pkg/logger"

	"go.uber.org/zap"
)

// EventBus minimal surface of the transport session used by the use cases
type EventBus interface {
	On(event domain.Event, h transport.Handler) int
	Off(event domain.Event, id int)
	Emit(event domain.Event, payload interface{}) error
}

// PresenceUseCase 維護目前在線的 user id 集合
// 只有這裡能改 presence set，其他元件只能查詢
type PresenceUseCase struct {
	bus EventBus

	mu     sync.RWMutex
	online map[string]bool

	subSnapshot int
	subStatus   int
}

// NewPresenceUseCase create PresenceUseCase and subscribe presence events
func NewPresenceUseCase(bus EventBus) *PresenceUseCase {
	uc := &PresenceUseCase{
		bus:    bus,
		online: make(map[string]bool),
	}
	uc.subSnapshot = bus.On(domain.EventOnlineUsers, uc.handleSnapshot)
	uc.subStatus = bus.On(domain.EventUserStatus, uc.handleStatus)
	return uc
}

// handleSnapshot 全量替換 presence set
func (uc *PresenceUseCase) handleSnapshot(payload json.RawMessage) {
	ids, err := domain.DecodeOnlineUsers(payload)
	if err != nil {
		logger.Log.Error("presence snapshot decode failed", zap.Error(err))
		return
	}

	next := make(map[string]bool, len(ids))
	for _, id := range ids {
		next[id] = true
	}

	uc.mu.Lock()
	uc.online = next
	uc.mu.Unlock()
}

// handleStatus 單人上下線，重複加入或移除不存在的 id 都是 no-op
func (uc *PresenceUseCase) handleStatus(payload json.RawMessage) {
	var status domain.UserStatusPayload
	if err := json.Unmarshal(payload, &status); err != nil {
		logger.Log.Error("presence status decode failed", zap.Error(err))
		return
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if status.IsOnline {
		uc.online[status.UserID] = true
	} else {
		delete(uc.online, status.UserID)
	}
}

// IsOnline report whether the user is currently online
func (uc *PresenceUseCase) IsOnline(userID string) bool {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return uc.online[userID]
}

// OnlineUsers return the current presence set, sorted
func (uc *PresenceUseCase) OnlineUsers() []string {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	ids := make([]string, 0, len(uc.online))
	for id := range uc.online {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear empty the presence set. 斷線時呼叫，重連後由 snapshot 重建
func (uc *PresenceUseCase) Clear() {
	uc.mu.Lock()
	uc.online = make(map[string]bool)
	uc.mu.Unlock()
}

// Close unsubscribe from the transport session
func (uc *PresenceUseCase) Close() {
	uc.bus.Off(domain.EventOnlineUsers, uc.subSnapshot)
	uc.bus.Off(domain.EventUserStatus, uc.subStatus)
}
