package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ToolStore abstracts DB queries for testability.
type ToolStore interface {
	LookupTool(ctx context.Context, toolName string) (*toolRow, error)
}

type toolRow struct {
	ToolName         string
	Description      sql.NullString
	ArgumentSchema   sql.NullString // JSONB
	ScanForInjection bool
}

// sqlToolStore is the real implementation using *sql.DB.
type sqlToolStore struct {
	db *sql.DB
}

func (s *sqlToolStore) LookupTool(ctx context.Context, toolName string) (*toolRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tool_name, description, argument_schema, scan_for_injection
		FROM warden_tools
		WHERE tool_name = $1
	`, toolName)

	var r toolRow
	if err := row.Scan(&r.ToolName, &r.Description, &r.ArgumentSchema, &r.ScanForInjection); err != nil {
		return nil, err
	}
	return &r, nil
}

// PostgresToolRegistry fetches tool definitions from the warden_tools
// table, with a stale-while-revalidate cache in front so the validate
// hot path never waits on the database after warmup.
type PostgresToolRegistry struct {
	store  ToolStore
	cache  *ToolCache
	logger *zap.Logger
}

// PostgresToolRegistryConfig configures the PostgresToolRegistry.
type PostgresToolRegistryConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration // Default: 60s
	Logger   *zap.Logger
}

// NewPostgresToolRegistry creates a new PostgresToolRegistry.
func NewPostgresToolRegistry(cfg PostgresToolRegistryConfig) *PostgresToolRegistry {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 60 * time.Second
	}
	return &PostgresToolRegistry{
		store:  &sqlToolStore{db: cfg.DB},
		cache:  NewToolCache(ttl),
		logger: cfg.Logger,
	}
}

// newPostgresToolRegistryWithStore creates a registry with an injected store (for testing).
func newPostgresToolRegistryWithStore(store ToolStore, cacheTTL time.Duration, logger *zap.Logger) *PostgresToolRegistry {
	if cacheTTL == 0 {
		cacheTTL = 60 * time.Second
	}
	return &PostgresToolRegistry{
		store:  store,
		cache:  NewToolCache(cacheTTL),
		logger: logger,
	}
}

func (r *PostgresToolRegistry) GetTool(ctx context.Context, toolName string) (*ToolDefinition, error) {
	cacheResult := r.cache.Get(toolName)
	if cacheResult.Hit {
		if cacheResult.NeedsRefresh {
			go r.refreshInBackground(toolName)
		}
		return cacheResult.Tool, nil
	}

	// Cache miss: fetch from DB
	td, err := r.fetchFromDB(ctx, toolName)
	if err != nil {
		if err == sql.ErrNoRows {
			// Negative cache: tool not registered
			r.cache.Set(toolName, nil)
			return nil, nil
		}
		return nil, fmt.Errorf("GetTool: %w", err)
	}

	r.cache.Set(toolName, td)
	return td, nil
}

func (r *PostgresToolRegistry) fetchFromDB(ctx context.Context, toolName string) (*ToolDefinition, error) {
	row, err := r.store.LookupTool(ctx, toolName)
	if err != nil {
		return nil, err
	}
	return parseToolRow(row)
}

func (r *PostgresToolRegistry) refreshInBackground(toolName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	td, err := r.fetchFromDB(ctx, toolName)
	if err != nil {
		r.logger.Warn("background tool registry refresh failed",
			zap.String("tool_name", toolName),
			zap.Error(err),
		)
		return
	}
	r.cache.Set(toolName, td)
}

func parseToolRow(row *toolRow) (*ToolDefinition, error) {
	td := &ToolDefinition{
		ToolName:         row.ToolName,
		ScanForInjection: row.ScanForInjection,
	}

	if row.Description.Valid {
		td.Description = row.Description.String
	}

	if row.ArgumentSchema.Valid && row.ArgumentSchema.String != "" && row.ArgumentSchema.String != "null" {
		var schema map[string]any
		if err := json.Unmarshal([]byte(row.ArgumentSchema.String), &schema); err != nil {
			return nil, fmt.Errorf("parseToolRow: argument_schema: %w", err)
		}
		td.ArgumentSchema = schema
	}

	return td, nil
}
