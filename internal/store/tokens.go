package store

import (
	"context"
	"fmt"
	"time"

	"github.com/naveenvaja/ridit-webapp/internal/kv"
)

type revocation struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// RevokeToken adds a token's JTI to the revocation list.
func RevokeToken(ctx context.Context, db kv.Store, jti string, expiresAt time.Time) error {
	if err := db.Set(ctx, kv.Join(RevokedCollection, jti), revocation{ExpiresAt: expiresAt.UTC()}); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}

	// Opportunistically clean up expired revocations.
	_ = PurgeRevokedTokens(ctx, db, time.Now())

	return nil
}

// IsTokenRevoked checks if a token's JTI has been revoked.
func IsTokenRevoked(ctx context.Context, db kv.Store, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	var r revocation
	found, err := db.Get(ctx, kv.Join(RevokedCollection, jti), &r)
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return found, nil
}

// PurgeRevokedTokens drops revocations whose token has expired by now.
func PurgeRevokedTokens(ctx context.Context, db kv.Store, now time.Time) error {
	entries, err := db.List(ctx, RevokedCollection)
	if err != nil {
		return fmt.Errorf("listing revoked tokens: %w", err)
	}
	for _, e := range entries {
		var r revocation
		if err := e.Decode(&r); err != nil || !r.ExpiresAt.Before(now) {
			continue
		}
		if err := db.Delete(ctx, kv.Join(RevokedCollection, e.Key)); err != nil {
			return fmt.Errorf("purging revoked token: %w", err)
		}
	}
	return nil
}
