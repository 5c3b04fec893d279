package unit

import (
	"encoding/json"
	"testing"

	"social_realtime_client/internal/realtime/domain"

	"github.com/stretchr/testify/assert"
)

func TestChatMessagePending(t *testing.T) {
	pending := domain.ChatMessage{TempID: "tmp-1", Content: "hi"}
	assert.True(t, pending.Pending(), "message without server id should be pending")

	confirmed := domain.ChatMessage{ID: "m1", Content: "hi"}
	assert.False(t, confirmed.Pending(), "confirmed message should not be pending")
}

func TestChatMessageTombstone(t *testing.T) {
	msg := domain.ChatMessage{ID: "m1", Content: "secret", Attachment: "photo.png"}

	msg.Tombstone()
	assert.True(t, msg.Deleted)
	assert.Equal(t, domain.DeletedText, msg.Content)
	assert.Empty(t, msg.Attachment)

	// 重複刪除是 no-op
	msg.Tombstone()
	assert.Equal(t, domain.DeletedText, msg.Content)
}

func TestChatMessageBetween(t *testing.T) {
	msg := domain.ChatMessage{SenderID: "alice", ReceiverID: "bob"}

	assert.True(t, msg.Between("alice", "bob"))
	assert.True(t, msg.Between("bob", "alice"), "direction should not matter")
	assert.False(t, msg.Between("alice", "carol"))
}

func TestConversationTouch(t *testing.T) {
	conv := domain.Conversation{PeerID: "bob"}
	conv.Touch(domain.ChatMessage{Content: "latest", CreatedAt: 42})

	assert.Equal(t, "latest", conv.LastContent)
	assert.Equal(t, int64(42), conv.LastTs)
}

func TestDecodeOnlineUsersList(t *testing.T) {
	ids, err := domain.DecodeOnlineUsers(json.RawMessage(`["alice","bob"]`))
	assert.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, ids)
}

func TestDecodeOnlineUsersMap(t *testing.T) {
	ids, err := domain.DecodeOnlineUsers(json.RawMessage(`{"alice":true,"bob":false}`))
	assert.NoError(t, err)
	assert.Equal(t, []string{"alice"}, ids, "offline entries should be dropped")
}

func TestDecodeOnlineUsersBadPayload(t *testing.T) {
	_, err := domain.DecodeOnlineUsers(json.RawMessage(`"not a snapshot"`))
	assert.Error(t, err)
}

func TestNewCallRoomID(t *testing.T) {
	assert.Equal(t, "alice-bob-1700000000000",
		domain.NewCallRoomID("alice", "bob", 1700000000000))

	// 同一對人不同時間產生不同 room
	assert.NotEqual(t,
		domain.NewCallRoomID("alice", "bob", 1),
		domain.NewCallRoomID("alice", "bob", 2))
}

func TestNewWSEvent(t *testing.T) {
	event, err := domain.NewWSEvent(domain.EventUserStatus,
		domain.UserStatusPayload{UserID: "alice", IsOnline: true})
	assert.NoError(t, err)
	assert.Equal(t, "user_status", event.Event)

	var payload domain.UserStatusPayload
	assert.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, "alice", payload.UserID)

	// heartbeat 沒有 payload
	event, err = domain.NewWSEvent(domain.EventHeartbeat, nil)
	assert.NoError(t, err)
	assert.Nil(t, event.Payload)
}
