package app

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"social_realtime_client/internal/realtime/domain"
	"social_realtime_client/internal/realtime/repository"
	"social_realtime_client/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrStaleSelection the selected conversation changed while the history
// fetch was in flight; the result was discarded
var ErrStaleSelection = errors.New("conversation selection changed")

// MessageUseCase 為目前開啟的對話維護一條有序、去重的 timeline
// 三個來源：REST 歷史、transport 推播、本地樂觀送出
type MessageUseCase struct {
	api repository.ChatAPIRepository
	bus EventBus

	userID string

	mu            sync.Mutex
	conversations map[string]*domain.Conversation
	activeID      string
	fetchSeq      uint64

	subMsg int
	subDel int
}

// NewMessageUseCase create MessageUseCase and subscribe message pushes
func NewMessageUseCase(bus EventBus, api repository.ChatAPIRepository, userID string) *MessageUseCase {
	uc := &MessageUseCase{
		api:           api,
		bus:           bus,
		userID:        userID,
		conversations: make(map[string]*domain.Conversation),
	}
	uc.subMsg = bus.On(domain.EventNewMessage, uc.handleIncoming)
	uc.subDel = bus.On(domain.EventDeleteMessage, uc.handleDeleted)
	return uc
}

// ensureLocked 取得或建立對話，caller 必須持有 uc.mu
func (uc *MessageUseCase) ensureLocked(peerID string) *domain.Conversation {
	conv, ok := uc.conversations[peerID]
	if !ok {
		conv = &domain.Conversation{PeerID: peerID}
		uc.conversations[peerID] = conv
	}
	return conv
}

// Select open the conversation with peerID and load its history.
// 切換對話後才回來的舊 fetch 結果一律丟棄（ErrStaleSelection）
func (uc *MessageUseCase) Select(ctx context.Context, peerID string) ([]domain.ChatMessage, error) {
	uc.mu.Lock()
	uc.activeID = peerID
	uc.fetchSeq++
	seq := uc.fetchSeq
	conv := uc.ensureLocked(peerID)
	conv.Unread = 0
	uc.mu.Unlock()

	// mark-read 不可以擋住訊息載入，失敗也不影響開啟對話
	go func() {
		markCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := uc.api.MarkConversationRead(markCtx, peerID); err != nil {
			logger.Log.Warn("mark conversation read failed",
				zap.String("peerID", peerID),
				zap.Error(err),
			)
		}
	}()

	history, err := uc.api.FetchHistory(ctx, peerID)
	if err != nil {
		return nil, err
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.fetchSeq != seq || uc.activeID != peerID {
		return nil, ErrStaleSelection
	}

	conv = uc.ensureLocked(peerID)
	conv.Messages = mergeHistory(history, conv.Messages)
	if last := lastVisible(conv.Messages); last != nil {
		conv.Touch(*last)
	}
	return copyMessages(conv.Messages), nil
}

// mergeHistory REST 歷史為基準，保留 fetch 期間先到的推播與尚未確認的樂觀訊息
func mergeHistory(history, existing []domain.ChatMessage) []domain.ChatMessage {
	merged := make([]domain.ChatMessage, len(history))
	copy(merged, history)

	seen := make(map[string]bool, len(history))
	for _, m := range history {
		if m.ID != "" {
			seen[m.ID] = true
		}
	}
	for _, m := range existing {
		if m.Pending() {
			merged = append(merged, m)
			continue
		}
		if m.ID != "" && !seen[m.ID] {
			merged = append(merged, m)
			seen[m.ID] = true
		}
	}
	return merged
}

// handleIncoming transport 推播的訊息
// 開啟中的對話直接附加，其他對話只更新未讀與摘要
func (uc *MessageUseCase) handleIncoming(payload json.RawMessage) {
	var msg domain.ChatMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		logger.Log.Error("message decode failed", zap.Error(err))
		return
	}

	var peerID string
	switch {
	case msg.ReceiverID == uc.userID:
		peerID = msg.SenderID
	case msg.SenderID == uc.userID:
		peerID = msg.ReceiverID
	default:
		// 不屬於這個 session 的訊息，記錄後忽略
		logger.Log.Warn("message for unknown conversation",
			zap.String("sender", msg.SenderID),
			zap.String("receiver", msg.ReceiverID),
		)
		return
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	conv := uc.ensureLocked(peerID)

	// 同一則訊息（REST ack 先行）不重覆附加
	if msg.ID != "" && containsID(conv.Messages, msg.ID) {
		return
	}

	if peerID == uc.activeID {
		conv.Messages = append(conv.Messages, msg)
		conv.Touch(msg)
		return
	}

	conv.Touch(msg)
	if msg.SenderID != uc.userID {
		conv.Unread++
	}
}

// Send 樂觀附加一筆暫時訊息，等 REST ack 後原地換成 server 確認版
func (uc *MessageUseCase) Send(ctx context.Context, peerID, content, attachment, replyTo string) (domain.ChatMessage, error) {
	pending := domain.ChatMessage{
		TempID:     uuid.New().String(),
		SenderID:   uc.userID,
		ReceiverID: peerID,
		Content:    content,
		Attachment: attachment,
		ReplyTo:    replyTo,
		CreatedAt:  time.Now().Unix(),
	}

	uc.mu.Lock()
	conv := uc.ensureLocked(peerID)
	conv.Messages = append(conv.Messages, pending)
	conv.Touch(pending)
	uc.mu.Unlock()

	confirmed, err := uc.api.SendMessage(ctx, pending)
	if err != nil {
		// 送出失敗的樂觀訊息不能留在 timeline
		uc.mu.Lock()
		conv := uc.ensureLocked(peerID)
		conv.Messages = removeTemp(conv.Messages, pending.TempID)
		uc.mu.Unlock()
		return domain.ChatMessage{}, err
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	conv = uc.ensureLocked(peerID)
	if confirmed.ID != "" && containsID(conv.Messages, confirmed.ID) {
		// transport echo 比 ack 先到，樂觀那筆移除即可
		conv.Messages = removeTemp(conv.Messages, pending.TempID)
		return confirmed, nil
	}
	for i := range conv.Messages {
		if conv.Messages[i].TempID == pending.TempID {
			conv.Messages[i] = confirmed
			break
		}
	}
	return confirmed, nil
}

// Delete soft-delete one own message; the local copy becomes a tombstone
// at its original position
func (uc *MessageUseCase) Delete(ctx context.Context, messageID string) error {
	if err := uc.api.DeleteMessage(ctx, messageID); err != nil {
		return err
	}
	uc.tombstone(messageID)
	return nil
}

// handleDeleted transport 送來的刪除（例如自己另一個分頁），套用同一套原地改寫
func (uc *MessageUseCase) handleDeleted(payload json.RawMessage) {
	var del domain.DeleteMessagePayload
	if err := json.Unmarshal(payload, &del); err != nil {
		logger.Log.Error("delete payload decode failed", zap.Error(err))
		return
	}
	if !uc.tombstone(del.MessageID) {
		logger.Log.Warn("delete for unknown message", zap.String("messageID", del.MessageID))
	}
}

// tombstone 原地改寫，重覆刪除是 no-op，位置不動
func (uc *MessageUseCase) tombstone(messageID string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	for _, conv := range uc.conversations {
		for i := range conv.Messages {
			if conv.Messages[i].ID == messageID {
				conv.Messages[i].Tombstone()
				if conv.LastTs == conv.Messages[i].CreatedAt {
					conv.LastContent = domain.DeletedText
				}
				return true
			}
		}
	}
	return false
}

// Timeline return a copy of one conversation's message sequence
func (uc *MessageUseCase) Timeline(peerID string) []domain.ChatMessage {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	conv, ok := uc.conversations[peerID]
	if !ok {
		return nil
	}
	return copyMessages(conv.Messages)
}

// ActiveID id of the currently open conversation
func (uc *MessageUseCase) ActiveID() string {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.activeID
}

// Summary denormalized state of one conversation
func (uc *MessageUseCase) Summary(peerID string) (domain.Conversation, bool) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	conv, ok := uc.conversations[peerID]
	if !ok {
		return domain.Conversation{}, false
	}
	out := *conv
	out.Messages = nil
	return out, true
}

// Summaries contact-list ordering，最近訊息在前
func (uc *MessageUseCase) Summaries() []domain.Conversation {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	out := make([]domain.Conversation, 0, len(uc.conversations))
	for _, conv := range uc.conversations {
		c := *conv
		c.Messages = nil
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastTs > out[j].LastTs })
	return out
}

// Close unsubscribe from the transport session
func (uc *MessageUseCase) Close() {
	uc.bus.Off(domain.EventNewMessage, uc.subMsg)
	uc.bus.Off(domain.EventDeleteMessage, uc.subDel)
}

func containsID(messages []domain.ChatMessage, id string) bool {
	for _, m := range messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

func removeTemp(messages []domain.ChatMessage, tempID string) []domain.ChatMessage {
	for i := range messages {
		if messages[i].TempID == tempID && messages[i].Pending() {
			return append(messages[:i], messages[i+1:]...)
		}
	}
	return messages
}

func copyMessages(messages []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(messages))
	copy(out, messages)
	return out
}

func lastVisible(messages []domain.ChatMessage) *domain.ChatMessage {
	if len(messages) == 0 {
		return nil
	}
	return &messages[len(messages)-1]
}
