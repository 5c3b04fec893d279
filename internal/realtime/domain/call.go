package domain

import "fmt"

// CallState call signaling state
type CallState string

const (
	// CallIdle no call attempt in progress
	CallIdle CallState = "idle"
	// CallRinging caller waiting for the callee to answer
	CallRinging CallState = "ringing"
	// CallIncoming callee has an unanswered call
	CallIncoming CallState = "incoming"
	// CallActive either party has joined the room
	CallActive CallState = "active"
	// CallEnded declined, cancelled or completed
	CallEnded CallState = "ended"
)

// CallAttempt one instance of the call state machine
type CallAttempt struct {
	RoomID   string    `json:"room_id"`
	CallerID string    `json:"caller_id"`
	CalleeID string    `json:"callee_id"`
	State    CallState `json:"state"`
}

// NewCallRoomID room id unique per attempt.
// caller、callee 加上毫秒 timestamp，relay log 可直接讀出誰打給誰
func NewCallRoomID(callerID, calleeID string, unixMilli int64) string {
	return fmt.Sprintf("%s-%s-%d", callerID, calleeID, unixMilli)
}

// CallUserPayload call_user wire payload
type CallUserPayload struct {
	TargetID string `json:"target_id"`
	RoomID   string `json:"room_id"`
	CallerID string `json:"caller_id"`
}

// IncomingCallPayload incoming_call wire payload
type IncomingCallPayload struct {
	RoomID   string `json:"room_id"`
	CallerID string `json:"caller_id"`
}

// AnswerCallPayload answer_call wire payload
type AnswerCallPayload struct {
	RoomID string `json:"room_id"`
}

// DeclineCallPayload decline_call wire payload
type DeclineCallPayload struct {
	RoomID string `json:"room_id"`
}
