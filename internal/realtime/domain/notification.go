package domain

// Notification 表示一則站內通知
type Notification struct {
	ID         string `json:"id"`
	ReceiverID string `json:"receiver_id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name,omitempty"`
	Type       string `json:"type"`
	Content    string `json:"content"`
	PostID     string `json:"post_id,omitempty"`
	Read       bool   `json:"read"`
	CreatedAt  int64  `json:"created_at"`
}

// NotificationPage one REST page of notifications, newest first
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Total         int            `json:"total"`
	Page          int            `json:"page"`
}
