package domain

// Contact one entry of the contact list
type Contact struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	LastSeen int64  `json:"last_seen,omitempty"`
}
