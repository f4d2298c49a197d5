package policy

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresSource reads the policy document from the warden_policies table.
// The table holds full policy documents as JSONB; the newest row wins.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource creates a source over the given connection pool.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Load(ctx context.Context) (Policy, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT document
		FROM warden_policies
		ORDER BY updated_at DESC
		LIMIT 1`,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		// No policy row yet; nothing configured.
		return Default(), nil
	}
	if err != nil {
		return Policy{}, fmt.Errorf("PostgresSource.Load: %w", err)
	}
	return parseDocument(raw)
}
