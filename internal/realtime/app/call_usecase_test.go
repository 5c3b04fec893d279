package app

import (
	"encoding/json"
	"testing"
	"time"

	"social_realtime_client/internal/realtime/domain"

	"github.com/stretchr/testify/assert"
)

func newCallFixture() (*fakeBus, *CallUseCase) {
	bus := newFakeBus()
	uc := NewCallUseCase(bus, "user-caller")
	uc.now = func() time.Time { return time.UnixMilli(1000) }
	return bus, uc
}

// 發話後 ringing，payload 帶 target/room/caller
func TestCallUseCase_CallEmitsAndRings(t *testing.T) {
	bus, uc := newCallFixture()
	defer uc.Close()

	roomID, err := uc.Call("user-callee")
	assert.NoError(t, err)
	assert.Equal(t, "user-caller-user-callee-1000", roomID)
	assert.Equal(t, domain.CallRinging, uc.State())

	emits := bus.emittedEvents(domain.EventCallUser)
	assert.Len(t, emits, 1)

	var payload domain.CallUserPayload
	assert.NoError(t, json.Unmarshal(emits[0], &payload))
	assert.Equal(t, "user-callee", payload.TargetID)
	assert.Equal(t, roomID, payload.RoomID)
	assert.Equal(t, "user-caller", payload.CallerID)
}

// 同一時間只允許一個 attempt
func TestCallUseCase_CallWhileBusyRejected(t *testing.T) {
	_, uc := newCallFixture()
	defer uc.Close()

	_, err := uc.Call("user-callee")
	assert.NoError(t, err)

	_, err = uc.Call("user-other")
	assert.ErrorIs(t, err, ErrCallInProgress)
	// 原本的 attempt 不受影響
	assert.Equal(t, "user-callee", uc.Attempt().CalleeID)
}

// emit 失敗時 attempt 要回到 idle，不能卡在 ringing
func TestCallUseCase_CallEmitFailureRevertsToIdle(t *testing.T) {
	bus, uc := newCallFixture()
	defer uc.Close()

	bus.emitErr = assert.AnError
	_, err := uc.Call("user-callee")
	assert.Error(t, err)
	assert.Equal(t, domain.CallIdle, uc.State())
}

// 來電推播 → incoming，觸發 UI prompt
func TestCallUseCase_IncomingCall(t *testing.T) {
	bus, uc := newCallFixture()
	defer uc.Close()

	var prompted []domain.CallAttempt
	uc.SetIncomingHandler(func(a domain.CallAttempt) { prompted = append(prompted, a) })

	bus.Push(domain.EventIncomingCall, domain.IncomingCallPayload{RoomID: "room-1", CallerID: "user-peer"})

	assert.Equal(t, domain.CallIncoming, uc.State())
	assert.Len(t, prompted, 1)
	assert.Equal(t, "room-1", prompted[0].RoomID)
	assert.Equal(t, "user-peer", prompted[0].CallerID)
	assert.Equal(t, "user-caller", prompted[0].CalleeID)
}

// 接聽：incoming → active，回覆 answer_call，進媒體房間
func TestCallUseCase_Answer(t *testing.T) {
	bus, uc := newCallFixture()
	defer uc.Close()

	var joined []string
	uc.SetJoinRoomHandler(func(roomID string) { joined = append(joined, roomID) })

	bus.Push(domain.EventIncomingCall, domain.IncomingCallPayload{RoomID: "room-1", CallerID: "user-peer"})

	roomID, err := uc.Answer()
	assert.NoError(t, err)
	assert.Equal(t, "room-1", roomID)
	assert.Equal(t, domain.CallActive, uc.State())
	assert.Equal(t, []string{"room-1"}, joined)
	assert.Len(t, bus.emittedEvents(domain.EventAnswerCall), 1)
}

// caller 收到對方接聽：ringing → active，同樣進房間
func TestCallUseCase_HandleAnswer(t *testing.T) {
	bus, uc := newCallFixture()
	defer uc.Close()

	var joined []string
	uc.SetJoinRoomHandler(func(roomID string) { joined = append(joined, roomID) })

	roomID, err := uc.Call("user-callee")
	assert.NoError(t, err)

	bus.Push(domain.EventAnswerCall, domain.AnswerCallPayload{RoomID: roomID})
	assert.Equal(t, domain.CallActive, uc.State())
	assert.Equal(t, []string{roomID}, joined)
}

// 不認識的 room 的接聽忽略
func TestCallUseCase_AnswerForUnknownRoomIgnored(t *testing.T) {
	bus, uc := newCallFixture()
	defer uc.Close()

	_, err := uc.Call("user-callee")
	assert.NoError(t, err)

	bus.Push(domain.EventAnswerCall, domain.AnswerCallPayload{RoomID: "room-forged"})
	assert.Equal(t, domain.CallRinging, uc.State())
}

// 拒接：帶 room id 送出 decline，attempt 結束
func TestCallUseCase_Decline(t *testing.T) {
	bus, uc := newCallFixture()
	defer uc.Close()

	var ended []domain.CallAttempt
	uc.SetEndedHandler(func(a domain.CallAttempt) { ended = append(ended, a) })

	bus.Push(domain.EventIncomingCall, domain.IncomingCallPayload{RoomID: "room-1", CallerID: "user-peer"})
	assert.NoError(t, uc.Decline())

	assert.Equal(t, domain.CallEnded, uc.State())
	assert.Len(t, ended, 1)

	emits := bus.emittedEvents(domain.EventDeclineCall)
	assert.Len(t, emits, 1)
	var payload domain.DeclineCallPayload
	assert.NoError(t, json.Unmarshal(emits[0], &payload))
	assert.Equal(t, "room-1", payload.RoomID)
}

// caller 端收到拒接：ringing 收掉，ended prompt 只觸發一次
func TestCallUseCase_HandleDecline(t *testing.T) {
	bus, uc := newCallFixture()
	defer uc.Close()

	var ended []domain.CallAttempt
	uc.SetEndedHandler(func(a domain.CallAttempt) { ended = append(ended, a) })

	roomID, err := uc.Call("user-callee")
	assert.NoError(t, err)

	bus.Push(domain.EventDeclineCall, domain.DeclineCallPayload{RoomID: roomID})
	assert.Equal(t, domain.CallEnded, uc.State())
	assert.Len(t, ended, 1)

	// 同個 room 重送 decline 不再觸發
	bus.Push(domain.EventDeclineCall, domain.DeclineCallPayload{RoomID: roomID})
	assert.Len(t, ended, 1)
}

// 非 idle 時的第二通來電：回 busy decline，不動目前的 attempt
func TestCallUseCase_BusyDeclinesSecondIncoming(t *testing.T) {
	bus, uc := newCallFixture()
	defer uc.Close()

	roomID, err := uc.Call("user-callee")
	assert.NoError(t, err)

	bus.Push(domain.EventIncomingCall, domain.IncomingCallPayload{RoomID: "room-other", CallerID: "user-third"})

	assert.Equal(t, domain.CallRinging, uc.State())
	assert.Equal(t, roomID, uc.Attempt().RoomID)

	emits := bus.emittedEvents(domain.EventDeclineCall)
	assert.Len(t, emits, 1)
	var payload domain.DeclineCallPayload
	assert.NoError(t, json.Unmarshal(emits[0], &payload))
	// busy decline 是針對新的 room，不是目前的
	assert.Equal(t, "room-other", payload.RoomID)
}

// 已結束的 room 重送 incoming 一律忽略
func TestCallUseCase_StaleIncomingIgnored(t *testing.T) {
	bus, uc := newCallFixture()
	defer uc.Close()

	bus.Push(domain.EventIncomingCall, domain.IncomingCallPayload{RoomID: "room-1", CallerID: "user-peer"})
	assert.NoError(t, uc.Decline())
	uc.Dismiss()
	assert.Equal(t, domain.CallIdle, uc.State())

	bus.Push(domain.EventIncomingCall, domain.IncomingCallPayload{RoomID: "room-1", CallerID: "user-peer"})
	assert.Equal(t, domain.CallIdle, uc.State())
	// 也不會回 busy decline
	assert.Len(t, bus.emittedEvents(domain.EventDeclineCall), 1)
}

// caller 收回：callee 端以外還沒接通前都可以 cancel
func TestCallUseCase_Cancel(t *testing.T) {
	bus, uc := newCallFixture()
	defer uc.Close()

	roomID, err := uc.Call("user-callee")
	assert.NoError(t, err)
	assert.NoError(t, uc.Cancel())
	assert.Equal(t, domain.CallEnded, uc.State())

	emits := bus.emittedEvents(domain.EventDeclineCall)
	assert.Len(t, emits, 1)
	var payload domain.DeclineCallPayload
	assert.NoError(t, json.Unmarshal(emits[0], &payload))
	assert.Equal(t, roomID, payload.RoomID)

	// cancel 只在 ringing 合法
	assert.ErrorIs(t, uc.Cancel(), ErrInvalidCallState)
}

// 掛斷 active 通話後回 ended，Dismiss 回 idle 可再發話
func TestCallUseCase_HangupThenDismiss(t *testing.T) {
	bus, uc := newCallFixture()
	defer uc.Close()

	bus.Push(domain.EventIncomingCall, domain.IncomingCallPayload{RoomID: "room-1", CallerID: "user-peer"})
	_, err := uc.Answer()
	assert.NoError(t, err)

	assert.NoError(t, uc.Hangup())
	assert.Equal(t, domain.CallEnded, uc.State())

	uc.Dismiss()
	assert.Equal(t, domain.CallIdle, uc.State())

	_, err = uc.Call("user-next")
	assert.NoError(t, err)
}

// 非法轉移都回 ErrInvalidCallState
func TestCallUseCase_InvalidTransitions(t *testing.T) {
	_, uc := newCallFixture()
	defer uc.Close()

	_, err := uc.Answer()
	assert.ErrorIs(t, err, ErrInvalidCallState)
	assert.ErrorIs(t, uc.Decline(), ErrInvalidCallState)
	assert.ErrorIs(t, uc.Cancel(), ErrInvalidCallState)
	assert.ErrorIs(t, uc.Hangup(), ErrInvalidCallState)
}

// 連續不同 callee 發話產生不同 room id
func TestCallUseCase_UniqueRoomIDs(t *testing.T) {
	_, uc := newCallFixture()
	defer uc.Close()

	ms := int64(1000)
	uc.now = func() time.Time { ms++; return time.UnixMilli(ms) }

	room1, err := uc.Call("user-callee")
	assert.NoError(t, err)
	assert.NoError(t, uc.Cancel())
	uc.Dismiss()

	room2, err := uc.Call("user-callee")
	assert.NoError(t, err)
	assert.NotEqual(t, room1, room2)
}
