package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversation history in PostgreSQL. Appends and
// replaces run in a transaction so a concurrent reader sees either the old
// or the new history for a client, never a mix.
type PostgresStore struct {
	pool *pgxpool.Pool
	cap  int
}

func NewPostgresStore(ctx context.Context, databaseURL string, historyCap int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool, cap: historyCap}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversation_turns (
			seq BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			client_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			text TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_turns_client_seq ON conversation_turns (client_id, seq);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, clientID string) ([]Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sender, text FROM conversation_turns WHERE client_id=$1 ORDER BY seq`,
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func (s *PostgresStore) Append(ctx context.Context, clientID string, turn Turn) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO conversation_turns (client_id, sender, text) VALUES ($1, $2, $3)`,
		clientID, turn.Sender, turn.Text,
	); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}

	if s.cap > 0 {
		// Evict oldest turns past the cap, FIFO.
		if _, err := tx.Exec(ctx,
			`DELETE FROM conversation_turns WHERE client_id=$1 AND seq < (
				SELECT min(seq) FROM (
					SELECT seq FROM conversation_turns WHERE client_id=$1 ORDER BY seq DESC LIMIT $2
				) keep
			)`,
			clientID, s.cap,
		); err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *PostgresStore) Replace(ctx context.Context, clientID string, turns []Turn) error {
	if err := Validate(turns); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM conversation_turns WHERE client_id=$1`, clientID,
	); err != nil {
		return fmt.Errorf("clear before replace: %w", err)
	}
	for _, turn := range turns {
		if _, err := tx.Exec(ctx,
			`INSERT INTO conversation_turns (client_id, sender, text) VALUES ($1, $2, $3)`,
			clientID, turn.Sender, turn.Text,
		); err != nil {
			return fmt.Errorf("insert replacement turn: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, clientID string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM conversation_turns WHERE client_id=$1`, clientID,
	); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (s *PostgresStore) Snapshot(ctx context.Context) (map[string][]Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT client_id, sender, text FROM conversation_turns ORDER BY client_id, seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]Turn)
	for rows.Next() {
		var clientID string
		var turn Turn
		if err := rows.Scan(&clientID, &turn.Sender, &turn.Text); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		out[clientID] = append(out[clientID], turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Mode() string { return "postgres" }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanTurns(rows pgx.Rows) ([]Turn, error) {
	turns := []Turn{}
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Sender, &t.Text); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return turns, nil
}

var _ Store = (*PostgresStore)(nil)
