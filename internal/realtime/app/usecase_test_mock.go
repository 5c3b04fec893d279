package app

import (
	"context"
	"encoding/json"
	"sync"

	"social_realtime_client/internal/realtime/domain"
	"social_realtime_client/internal/realtime/transport"

	"github.com/stretchr/testify/mock"
)

// MockChatAPIRepository Mock ChatAPIRepository
type MockChatAPIRepository struct {
	mock.Mock
}

// FetchContacts mock fetch contact list
func (m *MockChatAPIRepository) FetchContacts(ctx context.Context) ([]domain.Contact, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Contact), args.Error(1)
	}
	return nil, args.Error(1)
}

// FetchHistory mock fetch message history
func (m *MockChatAPIRepository) FetchHistory(ctx context.Context, peerID string) ([]domain.ChatMessage, error) {
	args := m.Called(ctx, peerID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.ChatMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

// SendMessage mock send message
func (m *MockChatAPIRepository) SendMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(domain.ChatMessage), args.Error(1)
}

// MarkConversationRead mock mark conversation read
func (m *MockChatAPIRepository) MarkConversationRead(ctx context.Context, peerID string) error {
	args := m.Called(ctx, peerID)
	return args.Error(0)
}

// DeleteMessage mock soft-delete
func (m *MockChatAPIRepository) DeleteMessage(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

// FetchNotifications mock fetch one notification page
func (m *MockChatAPIRepository) FetchNotifications(ctx context.Context, page int) (domain.NotificationPage, error) {
	args := m.Called(ctx, page)
	return args.Get(0).(domain.NotificationPage), args.Error(1)
}

// SearchUsers mock search users
func (m *MockChatAPIRepository) SearchUsers(ctx context.Context, query string) ([]domain.Contact, error) {
	args := m.Called(ctx, query)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Contact), args.Error(1)
	}
	return nil, args.Error(1)
}

// StartConversation mock start conversation
func (m *MockChatAPIRepository) StartConversation(ctx context.Context, userID string) (domain.Contact, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.Contact), args.Error(1)
}

// fakeBus 測試用的同步 event bus，Push 模擬 server 推播
type fakeBus struct {
	mu       sync.Mutex
	handlers map[string]map[int]transport.Handler
	nextID   int
	emitted  []domain.WSEvent
	emitErr  error
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string]map[int]transport.Handler)}
}

func (b *fakeBus) On(event domain.Event, h transport.Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.handlers[string(event)]; !ok {
		b.handlers[string(event)] = make(map[int]transport.Handler)
	}
	b.nextID++
	b.handlers[string(event)][b.nextID] = h
	return b.nextID
}

func (b *fakeBus) Off(event domain.Event, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.handlers[string(event)]; ok {
		delete(subs, id)
	}
}

func (b *fakeBus) Emit(event domain.Event, payload interface{}) error {
	wsEvent, err := domain.NewWSEvent(event, payload)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.emitErr != nil {
		return b.emitErr
	}
	b.emitted = append(b.emitted, wsEvent)
	return nil
}

// Push 同步派發一個 server 事件給訂閱者
func (b *fakeBus) Push(event domain.Event, payload interface{}) {
	raw, _ := json.Marshal(payload)
	b.mu.Lock()
	subs := make([]transport.Handler, 0)
	for _, h := range b.handlers[string(event)] {
		subs = append(subs, h)
	}
	b.mu.Unlock()
	for _, h := range subs {
		h(raw)
	}
}

// PushRaw 直接派發原始 payload（測 protocol inconsistency 用）
func (b *fakeBus) PushRaw(event domain.Event, raw json.RawMessage) {
	b.mu.Lock()
	subs := make([]transport.Handler, 0)
	for _, h := range b.handlers[string(event)] {
		subs = append(subs, h)
	}
	b.mu.Unlock()
	for _, h := range subs {
		h(raw)
	}
}

// emittedEvents 取出所有以 event 名稱送出的 payload
func (b *fakeBus) emittedEvents(event domain.Event) []json.RawMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []json.RawMessage
	for _, e := range b.emitted {
		if e.Event == string(event) {
			out = append(out, e.Payload)
		}
	}
	return out
}
