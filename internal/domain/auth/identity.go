package auth

import "context"

// Identity is the authenticated principal executing a request. It is resolved
// by the security middleware from an opaque bearer token and carried in the
// request context; handlers and services never see the raw token.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
}

// Repository provides lookup of identities by the HMAC hash of their token.
type Repository interface {
	FindByTokenHash(ctx context.Context, hash string) (*Identity, error)
}

// identityKey is the context key for the authenticated identity.
type identityKey struct{}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext extracts the authenticated identity from the context.
// It returns nil when the request was not authenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
