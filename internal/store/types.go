package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: not found")

// Category classifies a durable memory record.
type Category string

const (
	CategoryFact         Category = "fact"
	CategoryPreference   Category = "preference"
	CategoryEvent        Category = "event"
	CategoryRelationship Category = "relationship"
	CategoryOther        Category = "other"
)

// ParseCategory normalizes free-form category text to a known Category.
func ParseCategory(s string) Category {
	switch Category(s) {
	case CategoryFact, CategoryPreference, CategoryEvent, CategoryRelationship:
		return Category(s)
	default:
		return CategoryOther
	}
}

// Personality configures how replies are phrased for a profile.
type Personality struct {
	Tone      string `json:"tone"`
	Verbosity string `json:"verbosity"`
	Humor     bool   `json:"humor"`
	Empathy   bool   `json:"empathy"`
}

// Profile is the owner of sessions, messages and memory records.
type Profile struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Personality Personality `json:"personality"`
	CreatedAt   time.Time   `json:"created_at"`
}

// SessionRecord is the persisted view of a conversation session.
type SessionRecord struct {
	ID          string    `json:"id"`
	ProfileID   string    `json:"profile_id"`
	PrivacyMode string    `json:"privacy_mode"`
	Status      string    `json:"status"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at,omitempty"`
}

// Message stores a single user or assistant conversational turn.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	ProfileID string    `json:"profile_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sanitized bool      `json:"sanitized"`
	CreatedAt time.Time `json:"created_at"`
}

// MemoryRecord is a durable, profile-scoped fact extracted from conversation.
type MemoryRecord struct {
	ID           string    `json:"id"`
	ProfileID    string    `json:"profile_id"`
	Content      string    `json:"content"`
	Importance   float64   `json:"importance"`
	Category     Category  `json:"category"`
	Tags         []string  `json:"tags"`
	Entities     []string  `json:"entities,omitempty"`
	MentionCount int       `json:"mention_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditEntry records one agent action. Content is never stored here, only
// coarse descriptors.
type AuditEntry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	ProfileID string    `json:"profile_id"`
	Agent     string    `json:"agent"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists profiles, sessions, messages, memory records and the
// append-only agent audit log.
type Store interface {
	CreateProfile(ctx context.Context, p Profile) (Profile, error)
	GetProfile(ctx context.Context, id string) (Profile, error)

	CreateSession(ctx context.Context, s SessionRecord) (SessionRecord, error)
	GetSession(ctx context.Context, id string) (SessionRecord, error)
	UpdateSessionPrivacy(ctx context.Context, id, mode string) error
	EndSession(ctx context.Context, id string) error

	SaveMessage(ctx context.Context, m Message) (Message, error)
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)

	SaveMemory(ctx context.Context, r MemoryRecord) (MemoryRecord, error)
	GetMemory(ctx context.Context, id string) (MemoryRecord, error)
	ListMemories(ctx context.Context, profileID string) ([]MemoryRecord, error)
	SearchMemories(ctx context.Context, profileID, substring string) ([]MemoryRecord, error)
	IncrementMention(ctx context.Context, id string) error

	AppendAudit(ctx context.Context, e AuditEntry) error

	Close() error
}
