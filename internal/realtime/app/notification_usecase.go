package app

import (
	"context"
	"encoding/json"
	"sync"

	"social_realtime_client/internal/realtime/domain"
	"social_realtime_client/internal/realtime/repository"
	"social_realtime_client/pkg/logger"

	"go.uber.org/zap"
)

// NotificationUseCase 合併 REST 分頁與即時推播成單一通知列表
// 以 id 去重，最新在前
type NotificationUseCase struct {
	api repository.ChatAPIRepository
	bus EventBus

	mu            sync.RWMutex
	notifications []domain.Notification
	onAlert       func(domain.Notification)

	sub int
}

// NewNotificationUseCase create NotificationUseCase and subscribe pushes
func NewNotificationUseCase(bus EventBus, api repository.ChatAPIRepository) *NotificationUseCase {
	uc := &NotificationUseCase{
		api: api,
		bus: bus,
	}
	uc.sub = bus.On(domain.EventNewNotification, uc.handleLive)
	return uc
}

// SetAlertHandler register the transient user-visible alert callback
func (uc *NotificationUseCase) SetAlertHandler(fn func(domain.Notification)) {
	uc.mu.Lock()
	uc.onAlert = fn
	uc.mu.Unlock()
}

// FetchPage load one REST page. 第一頁整批替換，之後的頁附加在尾端。
// 失敗時保留既有列表，錯誤交給呼叫端顯示
func (uc *NotificationUseCase) FetchPage(ctx context.Context, page int) error {
	result, err := uc.api.FetchNotifications(ctx, page)
	if err != nil {
		return err
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if page <= 1 {
		uc.notifications = result.Notifications
		return nil
	}

	seen := make(map[string]bool, len(uc.notifications))
	for _, n := range uc.notifications {
		seen[n.ID] = true
	}
	for _, n := range result.Notifications {
		// 推播先到、分頁重覆送達的只留一份
		if seen[n.ID] {
			continue
		}
		uc.notifications = append(uc.notifications, n)
		seen[n.ID] = true
	}
	return nil
}

// handleLive 推播先樂觀插到最前面，再由 alert callback 顯示提示
func (uc *NotificationUseCase) handleLive(payload json.RawMessage) {
	var n domain.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		logger.Log.Error("notification decode failed", zap.Error(err))
		return
	}

	uc.mu.Lock()
	exists := false
	for _, cur := range uc.notifications {
		if cur.ID == n.ID {
			exists = true
			break
		}
	}
	if !exists {
		uc.notifications = append([]domain.Notification{n}, uc.notifications...)
	}
	alert := uc.onAlert
	uc.mu.Unlock()

	if !exists && alert != nil {
		alert(n)
	}
}

// Notifications return a copy of the merged list, newest first
func (uc *NotificationUseCase) Notifications() []domain.Notification {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	out := make([]domain.Notification, len(uc.notifications))
	copy(out, uc.notifications)
	return out
}

// Total badge total, never double-counting a duplicated id
func (uc *NotificationUseCase) Total() int {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return len(uc.notifications)
}

// Unread badge unread count
func (uc *NotificationUseCase) Unread() int {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	count := 0
	for _, n := range uc.notifications {
		if !n.Read {
			count++
		}
	}
	return count
}

// Close unsubscribe from the transport session
func (uc *NotificationUseCase) Close() {
	uc.bus.Off(domain.EventNewNotification, uc.sub)
}
