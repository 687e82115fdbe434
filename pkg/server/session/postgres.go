package session

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore persists sessions in a sessions table, conversation
// history as jsonb.
type PostgresStore struct {
	pool       *pgxpool.Pool
	maxHistory int
}

// NewPostgresStore runs pending migrations and opens the connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string, maxHistory int) (*PostgresStore, error) {
	if maxHistory <= 0 {
		maxHistory = 20
	}
	if err := migrate(databaseURL); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("session: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session: ping database: %w", err)
	}
	return &PostgresStore{pool: pool, maxHistory: maxHistory}, nil
}

func migrate(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("session: open for migrate: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("session: set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("session: migrate: %w", err)
	}
	return nil
}

const sessionColumns = `id, user_ip, problem_id, problem_title, code, language,
	hint_level, message_count, history, created_at, last_updated`

func (s *PostgresStore) Sync(ctx context.Context, id string, in SyncInput) (*Session, bool, error) {
	created := false
	if id == "" {
		id = uuid.NewString()
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET
			code = $2, problem_id = $3, problem_title = $4,
			language = CASE WHEN $5 = '' THEN language ELSE $5 END,
			hint_level = $6, last_updated = now()
		WHERE id = $1`,
		id, in.Code, in.ProblemID, in.ProblemTitle, in.Language, in.HintLevel)
	if err != nil {
		return nil, false, fmt.Errorf("session: sync update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO sessions (id, user_ip, code, problem_id, problem_title, language, hint_level)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			id, in.UserIP, in.Code, in.ProblemID, in.ProblemTitle, in.Language, in.HintLevel)
		if err != nil {
			return nil, false, fmt.Errorf("session: sync insert: %w", err)
		}
		created = true
	}

	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return sess, created, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

func scanSession(row pgx.Row) (*Session, error) {
	var sess Session
	var history []byte
	err := row.Scan(&sess.ID, &sess.UserIP, &sess.ProblemID, &sess.ProblemTitle,
		&sess.Code, &sess.Language, &sess.HintLevel, &sess.MessageCount,
		&history, &sess.CreatedAt, &sess.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: scan: %w", err)
	}
	if err := json.Unmarshal(history, &sess.History); err != nil {
		return nil, fmt.Errorf("session: decode history: %w", err)
	}
	return &sess, nil
}

func (s *PostgresStore) AddMessage(ctx context.Context, id, role, content string) (*Session, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("session: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id)
	sess, err := scanSession(row)
	if err != nil {
		return nil, err
	}

	sess.History = append(sess.History, Message{Role: role, Content: content, Timestamp: time.Now().UTC()})
	if len(sess.History) > s.maxHistory {
		sess.History = sess.History[len(sess.History)-s.maxHistory:]
	}
	sess.MessageCount++

	history, err := json.Marshal(sess.History)
	if err != nil {
		return nil, fmt.Errorf("session: encode history: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE sessions SET history = $2, message_count = $3, last_updated = now()
		WHERE id = $1`, id, history, sess.MessageCount); err != nil {
		return nil, fmt.Errorf("session: add message: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("session: commit: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE last_updated < now() - $1::interval`,
		fmt.Sprintf("%f seconds", maxAge.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("session: cleanup: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx,
		`SELECT count(*), coalesce(sum(message_count), 0) FROM sessions`).
		Scan(&st.ActiveSessions, &st.TotalMessages)
	if err != nil {
		return Stats{}, fmt.Errorf("session: stats: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
