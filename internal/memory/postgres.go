package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists learner records in PostgreSQL.
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
		`CREATE TABLE IF NOT EXISTS learner_settings (
			namespace TEXT NOT NULL,
			user_id TEXT NOT NULL,
			settings JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (namespace, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS memory_facts (
			namespace TEXT NOT NULL,
			user_id TEXT NOT NULL,
			id BIGINT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (namespace, user_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS conversation_log (
			seq BIGSERIAL PRIMARY KEY,
			namespace TEXT NOT NULL,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_log_user ON conversation_log (namespace, user_id, seq);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, userID string) (Record, error) {
	settings, err := s.Settings(ctx, userID)
	if err != nil {
		return Record{}, err
	}
	facts, err := s.Facts(ctx, userID)
	if err != nil {
		return Record{}, err
	}
	log, err := s.ConversationLog(ctx, userID)
	if err != nil {
		return Record{}, err
	}
	return Record{Settings: settings, Facts: facts, ConversationLog: log}, nil
}

// Settings reads the single settings row, falling back to defaults.
func (s *PostgresStore) Settings(ctx context.Context, userID string) (Settings, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT settings FROM learner_settings WHERE namespace=$1 AND user_id=$2`,
		Namespace, userID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("query settings: %w", err)
	}
	out := DefaultSettings()
	if err := json.Unmarshal(raw, &out); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SaveSettings(ctx context.Context, userID string, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO learner_settings (namespace, user_id, settings, updated_at)
		 VALUES ($1, $2, $3::jsonb, now())
		 ON CONFLICT (namespace, user_id) DO UPDATE SET settings=EXCLUDED.settings, updated_at=now()`,
		Namespace, userID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendFact(ctx context.Context, userID, content string) (Fact, error) {
	now := time.Now().UTC()
	f := Fact{Content: content, Timestamp: now}
	// The ID is the creation millisecond, bumped past the learner's latest fact on collision.
	err := s.pool.QueryRow(ctx,
		`INSERT INTO memory_facts (namespace, user_id, id, content, created_at)
		 SELECT $1, $2, GREATEST($3::bigint, COALESCE(MAX(id), 0) + 1), $4, $5
		 FROM memory_facts WHERE namespace=$1 AND user_id=$2
		 RETURNING id`,
		Namespace, userID, now.UnixMilli(), content, now,
	).Scan(&f.ID)
	if err != nil {
		return Fact{}, fmt.Errorf("append fact: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) Facts(ctx context.Context, userID string) ([]Fact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, content, created_at FROM memory_facts
		 WHERE namespace=$1 AND user_id=$2 ORDER BY id ASC`,
		Namespace, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.ID, &f.Content, &f.Timestamp); err != nil {
			return nil, fmt.Errorf("scan fact row: %w", err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fact rows: %w", err)
	}
	return facts, nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, userID string, turn DialogueTurn) error {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_log (namespace, user_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		Namespace, userID, string(turn.Role), turn.Content, turn.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) ConversationLog(ctx context.Context, userID string) ([]DialogueTurn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role, content, created_at FROM conversation_log
		 WHERE namespace=$1 AND user_id=$2 ORDER BY seq ASC`,
		Namespace, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversation log: %w", err)
	}
	defer rows.Close()

	var out []DialogueTurn
	for rows.Next() {
		var (
			t    DialogueTurn
			role string
		)
		if err := rows.Scan(&role, &t.Content, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan log row: %w", err)
		}
		t.Role = Role(role)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ClearConversationLog(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM conversation_log WHERE namespace=$1 AND user_id=$2`,
		Namespace, userID,
	)
	if err != nil {
		return fmt.Errorf("clear conversation log: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
