// Package queue defines message payloads exchanged over the message broker.
package queue

// SessionAttributedEvent is published when the attribution engine links
// a session to its winning application. It contains enough information
// for downstream consumers to notify the winner or feed analytics
// without querying the primary database.
type SessionAttributedEvent struct {
	SessionID     uint64  `json:"session_id"`
	ApplicationID uint64  `json:"application_id"`
	UserID        uint64  `json:"user_id"`
	DanceID       uint64  `json:"dance_id"`
	LocationID    uint64  `json:"location_id"`
	LocationName  string  `json:"location_name"`
	Slot          string  `json:"slot"`
	StartsAt      string  `json:"starts_at"`
	Score         float64 `json:"score"`
	Premium       bool    `json:"premium"`
	AttributedAt  string  `json:"attributed_at"`
}
