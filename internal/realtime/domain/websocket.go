package domain

import "encoding/json"

// Event websocket event name
type Event string

const (
	// EventOnlineUsers server push full online snapshot
	EventOnlineUsers Event = "online_users"
	// EventUserStatus server push single user online/offline delta
	EventUserStatus Event = "user_status"

	// EventHeartbeat client liveness ping
	EventHeartbeat Event = "heartbeat"

	// EventNewNotification server push notification
	EventNewNotification Event = "new_notification"

	// EventNewMessage server push chat message
	EventNewMessage Event = "new_message"
	// EventDeleteMessage server push message soft-delete
	EventDeleteMessage Event = "delete_message"

	// EventCallUser client initiate call to target
	EventCallUser Event = "call_user"
	// EventIncomingCall server push incoming call to callee
	EventIncomingCall Event = "incoming_call"
	// EventAnswerCall callee answered, relayed to the caller
	EventAnswerCall Event = "answer_call"
	// EventDeclineCall decline, cancel or busy signal carrying the room id
	EventDeclineCall Event = "decline_call"
)

// WSEvent websocket wire envelope
type WSEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewWSEvent marshal payload into a wire envelope
func NewWSEvent(event Event, payload interface{}) (WSEvent, error) {
	e := WSEvent{Event: string(event)}
	if payload == nil {
		return e, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return e, err
	}
	e.Payload = raw
	return e, nil
}
