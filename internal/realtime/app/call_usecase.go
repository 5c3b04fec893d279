package app

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"social_realtime_client/internal/realtime/domain"
	"social_realtime_client/pkg/logger"

	"go.uber.org/zap"
)

// endedRoomsCap 最多記住這麼多個已結束的 room id，用來擋重送
const endedRoomsCap = 32

var (
	// ErrCallInProgress a second call attempt while one is not idle
	ErrCallInProgress = errors.New("another call attempt is in progress")
	// ErrInvalidCallState the transition is not legal from the current state
	ErrInvalidCallState = errors.New("invalid call state")
)

// CallUseCase 每次通話一台小型狀態機
// idle → ringing/incoming → active/ended → idle，同一時間最多一個 attempt
type CallUseCase struct {
	bus    EventBus
	userID string

	mu      sync.Mutex
	attempt domain.CallAttempt

	endedRooms map[string]bool
	endedOrder []string

	onIncoming func(domain.CallAttempt)
	onEnded    func(domain.CallAttempt)
	onJoinRoom func(roomID string)

	subIncoming int
	subAnswer   int
	subDecline  int

	now func() time.Time
}

// NewCallUseCase create CallUseCase and subscribe call signaling events
func NewCallUseCase(bus EventBus, userID string) *CallUseCase {
	uc := &CallUseCase{
		bus:        bus,
		userID:     userID,
		attempt:    domain.CallAttempt{State: domain.CallIdle},
		endedRooms: make(map[string]bool),
		now:        time.Now,
	}
	uc.subIncoming = bus.On(domain.EventIncomingCall, uc.handleIncoming)
	uc.subAnswer = bus.On(domain.EventAnswerCall, uc.handleAnswer)
	uc.subDecline = bus.On(domain.EventDeclineCall, uc.handleDecline)
	return uc
}

// SetIncomingHandler register the UI prompt for an incoming call
func (uc *CallUseCase) SetIncomingHandler(fn func(domain.CallAttempt)) {
	uc.mu.Lock()
	uc.onIncoming = fn
	uc.mu.Unlock()
}

// SetEndedHandler register the one-time prompt when an attempt ends
func (uc *CallUseCase) SetEndedHandler(fn func(domain.CallAttempt)) {
	uc.mu.Lock()
	uc.onEnded = fn
	uc.mu.Unlock()
}

// SetJoinRoomHandler register the media-room navigation collaborator
func (uc *CallUseCase) SetJoinRoomHandler(fn func(roomID string)) {
	uc.mu.Lock()
	uc.onJoinRoom = fn
	uc.mu.Unlock()
}

// Call initiate a call. 進行中時直接回錯誤，絕不開第二台狀態機
func (uc *CallUseCase) Call(calleeID string) (string, error) {
	uc.mu.Lock()
	if uc.attempt.State != domain.CallIdle {
		uc.mu.Unlock()
		return "", ErrCallInProgress
	}

	roomID := domain.NewCallRoomID(uc.userID, calleeID, uc.now().UnixMilli())
	uc.attempt = domain.CallAttempt{
		RoomID:   roomID,
		CallerID: uc.userID,
		CalleeID: calleeID,
		State:    domain.CallRinging,
	}
	uc.mu.Unlock()

	err := uc.bus.Emit(domain.EventCallUser, domain.CallUserPayload{
		TargetID: calleeID,
		RoomID:   roomID,
		CallerID: uc.userID,
	})
	if err != nil {
		uc.mu.Lock()
		uc.attempt = domain.CallAttempt{State: domain.CallIdle}
		uc.mu.Unlock()
		return "", err
	}
	return roomID, nil
}

// handleIncoming server 推播的來電
// 已結束的 room 重送一律忽略；非 idle 時回覆 busy decline，不動目前的 attempt
func (uc *CallUseCase) handleIncoming(payload json.RawMessage) {
	var incoming domain.IncomingCallPayload
	if err := json.Unmarshal(payload, &incoming); err != nil {
		logger.Log.Error("incoming call decode failed", zap.Error(err))
		return
	}

	uc.mu.Lock()
	if uc.endedRooms[incoming.RoomID] {
		uc.mu.Unlock()
		logger.Log.Warn("stale incoming call ignored", zap.String("roomID", incoming.RoomID))
		return
	}

	if uc.attempt.State != domain.CallIdle {
		uc.mu.Unlock()
		logger.Log.Info("busy, declining incoming call",
			zap.String("roomID", incoming.RoomID),
			zap.String("caller", incoming.CallerID),
		)
		if err := uc.bus.Emit(domain.EventDeclineCall, domain.DeclineCallPayload{RoomID: incoming.RoomID}); err != nil {
			logger.Log.Errorf("busy decline emit failed", err)
		}
		return
	}

	uc.attempt = domain.CallAttempt{
		RoomID:   incoming.RoomID,
		CallerID: incoming.CallerID,
		CalleeID: uc.userID,
		State:    domain.CallIncoming,
	}
	attempt := uc.attempt
	prompt := uc.onIncoming
	uc.mu.Unlock()

	if prompt != nil {
		prompt(attempt)
	}
}

// Answer callee 接聽，雙方轉入媒體房間
func (uc *CallUseCase) Answer() (string, error) {
	uc.mu.Lock()
	if uc.attempt.State != domain.CallIncoming {
		uc.mu.Unlock()
		return "", ErrInvalidCallState
	}
	uc.attempt.State = domain.CallActive
	roomID := uc.attempt.RoomID
	join := uc.onJoinRoom
	uc.mu.Unlock()

	if err := uc.bus.Emit(domain.EventAnswerCall, domain.AnswerCallPayload{RoomID: roomID}); err != nil {
		logger.Log.Errorf("answer emit failed", err)
	}
	if join != nil {
		join(roomID)
	}
	return roomID, nil
}

// handleAnswer caller 端收到接聽，ringing → active
func (uc *CallUseCase) handleAnswer(payload json.RawMessage) {
	var answer domain.AnswerCallPayload
	if err := json.Unmarshal(payload, &answer); err != nil {
		logger.Log.Error("answer decode failed", zap.Error(err))
		return
	}

	uc.mu.Lock()
	if uc.attempt.State != domain.CallRinging || uc.attempt.RoomID != answer.RoomID {
		uc.mu.Unlock()
		logger.Log.Warn("answer for unknown room ignored", zap.String("roomID", answer.RoomID))
		return
	}
	uc.attempt.State = domain.CallActive
	roomID := uc.attempt.RoomID
	join := uc.onJoinRoom
	uc.mu.Unlock()

	if join != nil {
		join(roomID)
	}
}

// Decline callee 拒接，帶 room id 讓 caller 端的 ringing 一起收掉
func (uc *CallUseCase) Decline() error {
	uc.mu.Lock()
	if uc.attempt.State != domain.CallIncoming {
		uc.mu.Unlock()
		return ErrInvalidCallState
	}
	roomID := uc.attempt.RoomID
	uc.mu.Unlock()

	if err := uc.bus.Emit(domain.EventDeclineCall, domain.DeclineCallPayload{RoomID: roomID}); err != nil {
		logger.Log.Errorf("decline emit failed", err)
	}
	uc.end(roomID)
	return nil
}

// Cancel caller 收回（離開頁面或明確取消），必須通知 callee 收掉 incoming
func (uc *CallUseCase) Cancel() error {
	uc.mu.Lock()
	if uc.attempt.State != domain.CallRinging {
		uc.mu.Unlock()
		return ErrInvalidCallState
	}
	roomID := uc.attempt.RoomID
	uc.mu.Unlock()

	if err := uc.bus.Emit(domain.EventDeclineCall, domain.DeclineCallPayload{RoomID: roomID}); err != nil {
		logger.Log.Errorf("cancel emit failed", err)
	}
	uc.end(roomID)
	return nil
}

// handleDecline 對方拒接或收回
func (uc *CallUseCase) handleDecline(payload json.RawMessage) {
	var decline domain.DeclineCallPayload
	if err := json.Unmarshal(payload, &decline); err != nil {
		logger.Log.Error("decline decode failed", zap.Error(err))
		return
	}

	uc.mu.Lock()
	match := uc.attempt.State != domain.CallIdle &&
		uc.attempt.State != domain.CallEnded &&
		uc.attempt.RoomID == decline.RoomID
	uc.mu.Unlock()

	if !match {
		logger.Log.Warn("decline for unknown room ignored", zap.String("roomID", decline.RoomID))
		return
	}
	uc.end(decline.RoomID)
}

// end 收掉 attempt，記住 room id 擋住之後的重送
func (uc *CallUseCase) end(roomID string) {
	uc.mu.Lock()
	if uc.attempt.RoomID != roomID || uc.attempt.State == domain.CallEnded {
		uc.mu.Unlock()
		return
	}
	uc.attempt.State = domain.CallEnded
	ended := uc.attempt
	cb := uc.onEnded

	uc.endedRooms[roomID] = true
	uc.endedOrder = append(uc.endedOrder, roomID)
	if len(uc.endedOrder) > endedRoomsCap {
		oldest := uc.endedOrder[0]
		uc.endedOrder = uc.endedOrder[1:]
		delete(uc.endedRooms, oldest)
	}
	uc.mu.Unlock()

	if cb != nil {
		cb(ended)
	}
}

// Dismiss UI 提示關閉後回到 idle
func (uc *CallUseCase) Dismiss() {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.attempt.State == domain.CallEnded {
		uc.attempt = domain.CallAttempt{State: domain.CallIdle}
	}
}

// Hangup 結束 active 通話（離開媒體房間時呼叫）
func (uc *CallUseCase) Hangup() error {
	uc.mu.Lock()
	if uc.attempt.State != domain.CallActive {
		uc.mu.Unlock()
		return ErrInvalidCallState
	}
	roomID := uc.attempt.RoomID
	uc.mu.Unlock()

	if err := uc.bus.Emit(domain.EventDeclineCall, domain.DeclineCallPayload{RoomID: roomID}); err != nil {
		logger.Log.Errorf("hangup emit failed", err)
	}
	uc.end(roomID)
	return nil
}

// Attempt snapshot of the current call attempt
func (uc *CallUseCase) Attempt() domain.CallAttempt {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.attempt
}

// State current call state
func (uc *CallUseCase) State() domain.CallState {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.attempt.State
}

// Close unsubscribe from the transport session
func (uc *CallUseCase) Close() {
	uc.bus.Off(domain.EventIncomingCall, uc.subIncoming)
	uc.bus.Off(domain.EventAnswerCall, uc.subAnswer)
	uc.bus.Off(domain.EventDeclineCall, uc.subDecline)
}
