package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/livemart/marketplace/internal/domain/auth"
)

// SecurityHandler authenticates requests via HMAC-SHA256 hashed bearer
// tokens. Raw tokens never touch storage; only their keyed hash does.
type SecurityHandler struct {
	tokens auth.Repository
	pepper []byte
}

// NewSecurityHandler creates a SecurityHandler with the given token
// repository and HMAC pepper.
func NewSecurityHandler(tokens auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		tokens: tokens,
		pepper: pepper,
	}
}

// Middleware resolves the bearer token to an identity and stores it in the
// request context. Requests without a valid token are rejected with 401
// before any handler I/O.
func (s *SecurityHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		identity, err := s.tokens.FindByTokenHash(r.Context(), HashToken(token, s.pepper))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := auth.WithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// HashToken computes the storable HMAC-SHA256 hash of a raw token. Shared
// with the seed tool so both sides derive the same value.
func HashToken(token string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(prefix):])
	return token, token != ""
}
