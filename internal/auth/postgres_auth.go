package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ClientStore abstracts DB queries for testability.
type ClientStore interface {
	LookupByPrefix(ctx context.Context, prefix string) (*clientRow, error)
}

type clientRow struct {
	ClientID   string
	Name       string
	APIKeyHash string
}

// sqlClientStore is the real implementation using *sql.DB.
type sqlClientStore struct {
	db *sql.DB
}

func (s *sqlClientStore) LookupByPrefix(ctx context.Context, prefix string) (*clientRow, error) {
	row := &clientRow{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, api_key_hash
		FROM warden_clients
		WHERE api_key_prefix = $1`,
		prefix,
	).Scan(&row.ClientID, &row.Name, &row.APIKeyHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidAPIKey // no client with this prefix
		}
		return nil, fmt.Errorf("sqlClientStore.LookupByPrefix: %w", err)
	}
	return row, nil
}

// PostgresAuthenticator validates API keys against the warden_clients
// table. Uses AuthCache with stale-while-revalidate to avoid DB + bcrypt
// on the hot path. Auth failures always return an error; no validation
// runs without a valid key.
type PostgresAuthenticator struct {
	store  ClientStore
	cache  *AuthCache
	logger *zap.Logger
}

// PostgresAuthConfig configures the PostgresAuthenticator.
type PostgresAuthConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration // Default: 30s
	Logger   *zap.Logger
}

// NewPostgresAuthenticator creates a new authenticator backed by PostgreSQL.
func NewPostgresAuthenticator(cfg PostgresAuthConfig) *PostgresAuthenticator {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &PostgresAuthenticator{
		store:  &sqlClientStore{db: cfg.DB},
		cache:  NewAuthCache(ttl),
		logger: cfg.Logger,
	}
}

// newPostgresAuthenticatorWithStore creates an authenticator with an
// injected store (for testing).
func newPostgresAuthenticatorWithStore(store ClientStore, cache *AuthCache, logger *zap.Logger) *PostgresAuthenticator {
	return &PostgresAuthenticator{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Authenticate validates the API key against the database.
//
// Flow:
//  1. Cache lookup (stale-while-revalidate):
//     - Fresh hit: return immediately
//     - Stale hit: return stale client, spawn background refresh
//     - Miss: full DB + bcrypt lookup synchronously
//  2. On DB error: ErrAuthUnavailable, never a silent pass.
func (a *PostgresAuthenticator) Authenticate(ctx context.Context, token string) (*ClientContext, error) {
	if token == "" {
		return nil, ErrMissingAPIKey
	}
	if len(token) < KeyPrefixLen {
		return nil, ErrInvalidAPIKey
	}

	result := a.cache.Get(token)
	if result.Hit {
		if result.NeedsRefresh {
			go a.backgroundRefresh(token)
		}
		return result.Client, nil
	}

	client, err := a.lookupAndVerify(ctx, token)
	if err != nil {
		return nil, a.mapLookupError(err)
	}

	a.cache.Set(token, client)
	return client, nil
}

// backgroundRefresh performs the DB + bcrypt lookup off the hot path.
// Errors are logged but don't affect the caller (they already got the
// stale value).
func (a *PostgresAuthenticator) backgroundRefresh(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := a.lookupAndVerify(ctx, token)
	if err != nil {
		a.logger.Warn("background auth cache refresh failed", zap.Error(err))
		// Drop the entry so the next stale read retries the lookup.
		a.cache.Delete(token)
		return
	}

	a.cache.Set(token, client)
}

// lookupAndVerify does the full DB prefix lookup + bcrypt verification.
func (a *PostgresAuthenticator) lookupAndVerify(ctx context.Context, token string) (*ClientContext, error) {
	prefix := token[:KeyPrefixLen]

	row, err := a.store.LookupByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("lookupAndVerify: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.APIKeyHash), []byte(token)); err != nil {
		return nil, ErrInvalidAPIKey
	}

	return &ClientContext{
		ClientID: row.ClientID,
		Name:     row.Name,
	}, nil
}

// mapLookupError distinguishes bad keys from backend outages.
func (a *PostgresAuthenticator) mapLookupError(lookupErr error) error {
	if errors.Is(lookupErr, ErrInvalidAPIKey) {
		return ErrInvalidAPIKey
	}
	a.logger.Warn("auth DB unreachable", zap.Error(lookupErr))
	return fmt.Errorf("%w: %v", ErrAuthUnavailable, lookupErr)
}
