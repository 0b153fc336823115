package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/livemart/marketplace/internal/domain/auth"
)

const getIdentityByTokenHashSQL = `SELECT u.id, u.email, u.display_name
	FROM auth_tokens t JOIN users u ON u.id = t.user_id
	WHERE t.token_hash = $1`

var _ auth.Repository = (*TokenRepository)(nil)

// TokenRepository resolves bearer token hashes to identities, backed by
// PostgreSQL.
type TokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository returns a TokenRepository that uses the given pool.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// FindByTokenHash looks up the identity owning the token with the given
// HMAC-SHA256 hash. Returns an error wrapping pgx.ErrNoRows when no matching
// token exists.
func (r *TokenRepository) FindByTokenHash(ctx context.Context, hash string) (*auth.Identity, error) {
	var id auth.Identity
	err := r.pool.QueryRow(ctx, getIdentityByTokenHashSQL, hash).
		Scan(&id.ID, &id.Email, &id.DisplayName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("auth token not found: %w", err)
		}
		return nil, fmt.Errorf("finding auth token by hash: %w", err)
	}
	return &id, nil
}
