package domain

import "time"

// User is the platform account as this service sees it: enough to resolve
// message receivers and to record presence. The full profile lives in the
// accounts service.
type User struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	IsOnline   bool       `json:"is_online"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
