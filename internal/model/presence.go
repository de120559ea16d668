package model

import "time"

// PresenceRecord is one user's online lease. One logical record per user:
// concurrent sessions collapse into it via idempotent upsert keyed by
// UserID. A record whose lease expired is treated as absent even if it was
// never explicitly removed.
type PresenceRecord struct {
	UserID          string    `json:"user_id"`
	DisplayName     string    `json:"display_name"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at"`
	Online          bool      `json:"online"`
}
