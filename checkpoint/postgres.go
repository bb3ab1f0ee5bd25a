package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DefaultPostgresConfig returns default PostgreSQL configuration
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		DBName:   "genflow",
		SSLMode:  "disable",
	}
}

// NewPostgresStore creates a new PostgreSQL-backed checkpoint store
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	if config == nil {
		config = DefaultPostgresConfig()
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &PostgresStore{db: db}

	if err := store.createTable(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) createTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS plan_checkpoints (
		run_id VARCHAR(255) NOT NULL,
		step_key VARCHAR(255) NOT NULL,
		document JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		PRIMARY KEY (run_id, step_key)
	);
	CREATE INDEX IF NOT EXISTS idx_plan_checkpoints_run ON plan_checkpoints(run_id);
	`

	_, err := s.db.ExecContext(ctx, query)
	return err
}

// SaveStep upserts the step document for the run.
func (s *PostgresStore) SaveStep(ctx context.Context, runID, stepKey string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal step document: %w", err)
	}

	query := `
	INSERT INTO plan_checkpoints (run_id, step_key, document)
	VALUES ($1, $2, $3)
	ON CONFLICT (run_id, step_key) DO UPDATE SET document = EXCLUDED.document
	`
	if _, err := s.db.ExecContext(ctx, query, runID, stepKey, data); err != nil {
		return fmt.Errorf("failed to store step in PostgreSQL: %w", err)
	}
	return nil
}

// LoadRun fetches every saved step document for the run.
func (s *PostgresStore) LoadRun(ctx context.Context, runID string) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step_key, document FROM plan_checkpoints WHERE run_id = $1`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run from PostgreSQL: %w", err)
	}
	defer rows.Close()

	out := make(map[string]any)
	for rows.Next() {
		var stepKey string
		var data []byte
		if err := rows.Scan(&stepKey, &data); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step %q: %w", stepKey, err)
		}
		out[stepKey] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkpoint rows: %w", err)
	}
	return out, nil
}

// ClearRun deletes every saved document for the run.
func (s *PostgresStore) ClearRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM plan_checkpoints WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("failed to clear run in PostgreSQL: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
