package domain

// DeletedText tombstone content for a soft-deleted message
const DeletedText = "this message has been deleted"

// ChatMessage 表示一則聊天訊息
// 尚未被 server 確認的樂觀訊息只有 TempID，確認後換成 server ID
type ChatMessage struct {
	ID         string `json:"id,omitempty"`
	TempID     string `json:"temp_id,omitempty"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
	Attachment string `json:"attachment,omitempty"`
	ReplyTo    string `json:"reply_to,omitempty"`
	Read       bool   `json:"read"`
	Deleted    bool   `json:"deleted,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// Pending report whether the message is still waiting for the server ack
func (m ChatMessage) Pending() bool {
	return m.ID == "" && m.TempID != ""
}

// Tombstone rewrite the message in place to its deleted form.
// Deleting an already deleted message is a no-op.
func (m *ChatMessage) Tombstone() {
	if m.Deleted {
		return
	}
	m.Deleted = true
	m.Content = DeletedText
	m.Attachment = ""
}

// Between report whether the message belongs to the conversation
// between userA and userB (either direction).
func (m ChatMessage) Between(userA, userB string) bool {
	if m.SenderID == userA && m.ReceiverID == userB {
		return true
	}
	return m.SenderID == userB && m.ReceiverID == userA
}

// Conversation 與單一聯絡人的訊息串
type Conversation struct {
	PeerID   string        `json:"peer_id"`
	Messages []ChatMessage `json:"messages"`

	// denormalized summary for the contact list
	LastContent string `json:"last_content"`
	LastTs      int64  `json:"last_ts"`
	Unread      int    `json:"unread"`
}

// Touch update the denormalized last-message summary
func (c *Conversation) Touch(m ChatMessage) {
	c.LastContent = m.Content
	c.LastTs = m.CreatedAt
}

// DeleteMessagePayload delete_message wire payload
type DeleteMessagePayload struct {
	MessageID string `json:"message_id"`
}
