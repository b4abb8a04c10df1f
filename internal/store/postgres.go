package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists profiles, sessions, messages and memories in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			tone TEXT NOT NULL DEFAULT 'warm',
			verbosity TEXT NOT NULL DEFAULT 'balanced',
			humor BOOLEAN NOT NULL DEFAULT FALSE,
			empathy BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			profile_id TEXT NOT NULL,
			privacy_mode TEXT NOT NULL DEFAULT 'open',
			status TEXT NOT NULL DEFAULT 'active',
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			ended_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			profile_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			sanitized BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session_created ON messages (session_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS memory_records (
			id TEXT PRIMARY KEY,
			profile_id TEXT NOT NULL,
			content TEXT NOT NULL,
			importance DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			category TEXT NOT NULL DEFAULT 'other',
			tags TEXT[] NOT NULL DEFAULT '{}',
			entities TEXT[] NOT NULL DEFAULT '{}',
			mention_count INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_memory_records_profile_created ON memory_records (profile_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS agent_audit (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			profile_id TEXT NOT NULL,
			agent TEXT NOT NULL,
			action TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateProfile(ctx context.Context, p Profile) (Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id, name, tone, verbosity, humor, empathy, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Name, p.Personality.Tone, p.Personality.Verbosity,
		p.Personality.Humor, p.Personality.Empathy, p.CreatedAt,
	)
	if err != nil {
		return Profile{}, fmt.Errorf("create profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, id string) (Profile, error) {
	var p Profile
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, tone, verbosity, humor, empathy, created_at FROM profiles WHERE id=$1`, id,
	).Scan(&p.ID, &p.Name, &p.Personality.Tone, &p.Personality.Verbosity,
		&p.Personality.Humor, &p.Personality.Empathy, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, rec SessionRecord) (SessionRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = "active"
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, profile_id, privacy_mode, status, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.ProfileID, rec.PrivacyMode, rec.Status, rec.StartedAt,
	)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("create session: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (SessionRecord, error) {
	var rec SessionRecord
	var endedAt *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT id, profile_id, privacy_mode, status, started_at, ended_at FROM sessions WHERE id=$1`, id,
	).Scan(&rec.ID, &rec.ProfileID, &rec.PrivacyMode, &rec.Status, &rec.StartedAt, &endedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SessionRecord{}, ErrNotFound
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	if endedAt != nil {
		rec.EndedAt = *endedAt
	}
	return rec, nil
}

func (s *PostgresStore) UpdateSessionPrivacy(ctx context.Context, id, mode string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE sessions SET privacy_mode=$2 WHERE id=$1`, id, mode)
	if err != nil {
		return fmt.Errorf("update session privacy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) EndSession(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET status='ended', ended_at=now() WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveMessage(ctx context.Context, m Message) (Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, session_id, profile_id, role, content, sanitized, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.SessionID, m.ProfileID, m.Role, m.Content, m.Sanitized, m.CreatedAt,
	)
	if err != nil {
		return Message{}, fmt.Errorf("save message: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, profile_id, role, content, sanitized, created_at
		 FROM messages WHERE session_id=$1 ORDER BY created_at DESC LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.ProfileID, &m.Role, &m.Content, &m.Sanitized, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	// Reverse into chronological order for prompt coherence.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (s *PostgresStore) SaveMemory(ctx context.Context, r MemoryRecord) (MemoryRecord, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.MentionCount < 1 {
		r.MentionCount = 1
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO memory_records (id, profile_id, content, importance, category, tags, entities, mention_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.ProfileID, r.Content, r.Importance, string(r.Category), r.Tags, r.Entities, r.MentionCount, r.CreatedAt,
	)
	if err != nil {
		return MemoryRecord{}, fmt.Errorf("save memory: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) GetMemory(ctx context.Context, id string) (MemoryRecord, error) {
	rec, err := s.scanMemoryRow(ctx,
		`SELECT id, profile_id, content, importance, category, tags, entities, mention_count, created_at
		 FROM memory_records WHERE id=$1`, id)
	if err != nil {
		return MemoryRecord{}, err
	}
	return rec, nil
}

func (s *PostgresStore) ListMemories(ctx context.Context, profileID string) ([]MemoryRecord, error) {
	return s.queryMemories(ctx,
		`SELECT id, profile_id, content, importance, category, tags, entities, mention_count, created_at
		 FROM memory_records WHERE profile_id=$1 ORDER BY created_at DESC`, profileID)
}

func (s *PostgresStore) SearchMemories(ctx context.Context, profileID, substring string) ([]MemoryRecord, error) {
	return s.queryMemories(ctx,
		`SELECT id, profile_id, content, importance, category, tags, entities, mention_count, created_at
		 FROM memory_records WHERE profile_id=$1 AND content ILIKE '%' || $2 || '%'`, profileID, substring)
}

func (s *PostgresStore) IncrementMention(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE memory_records SET mention_count = mention_count + 1 WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("increment mention: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_audit (id, session_id, profile_id, agent, action, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.SessionID, e.ProfileID, e.Agent, e.Action, e.Detail, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) queryMemories(ctx context.Context, sql string, args ...any) ([]MemoryRecord, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var items []MemoryRecord
	for rows.Next() {
		var r MemoryRecord
		var category string
		if err := rows.Scan(&r.ID, &r.ProfileID, &r.Content, &r.Importance, &category, &r.Tags, &r.Entities, &r.MentionCount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		r.Category = ParseCategory(category)
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) scanMemoryRow(ctx context.Context, sql string, args ...any) (MemoryRecord, error) {
	var r MemoryRecord
	var category string
	err := s.pool.QueryRow(ctx, sql, args...).
		Scan(&r.ID, &r.ProfileID, &r.Content, &r.Importance, &category, &r.Tags, &r.Entities, &r.MentionCount, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return MemoryRecord{}, ErrNotFound
	}
	if err != nil {
		return MemoryRecord{}, fmt.Errorf("get memory: %w", err)
	}
	return r, nil
}
