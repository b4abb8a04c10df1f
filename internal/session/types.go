package session

import "time"

// CreateRequest defines payload for creating a new session.
type CreateRequest struct {
	ProfileID   string `json:"profile_id"`
	PrivacyMode string `json:"privacy_mode"`
}

// CreateResponse returns created session metadata.
type CreateResponse struct {
	SessionID       string    `json:"session_id"`
	ProfileID       string    `json:"profile_id"`
	Status          Status    `json:"status"`
	PrivacyMode     string    `json:"privacy_mode"`
	StartedAt       time.Time `json:"started_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
}
