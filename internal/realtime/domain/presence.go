package domain

import "encoding/json"

// UserStatusPayload user_status wire payload
type UserStatusPayload struct {
	UserID   string `json:"user_id"`
	IsOnline bool   `json:"is_online"`
}

// DecodeOnlineUsers normalize the online_users snapshot payload.
// 後端有時送 id 陣列，有時送 id->bool map，兩種都要接受
func DecodeOnlineUsers(raw json.RawMessage) ([]string, error) {
	var ids []string
	if err := json.Unmarshal(raw, &ids); err == nil {
		return ids, nil
	}

	var m map[string]bool
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	ids = make([]string, 0, len(m))
	for id, online := range m {
		if online {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
