package store

import (
	"context"
	"testing"
	"time"
)

func TestRevokeAndCheckToken(t *testing.T) {
	database := newTestStore(t)
	ctx := context.Background()

	// Token should not be revoked initially.
	revoked, err := IsTokenRevoked(ctx, database, "test-jti-1")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if revoked {
		t.Error("expected token not to be revoked")
	}

	err = RevokeToken(ctx, database, "test-jti-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}

	revoked, err = IsTokenRevoked(ctx, database, "test-jti-1")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if !revoked {
		t.Error("expected token to be revoked")
	}

	// Different JTI should not be revoked.
	revoked, _ = IsTokenRevoked(ctx, database, "test-jti-2")
	if revoked {
		t.Error("expected different token not to be revoked")
	}
}

func TestRevokeTokenIdempotent(t *testing.T) {
	database := newTestStore(t)
	ctx := context.Background()

	if err := RevokeToken(ctx, database, "test-jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("first RevokeToken: %v", err)
	}
	if err := RevokeToken(ctx, database, "test-jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("second RevokeToken: %v", err)
	}
}

func TestPurgeRevokedTokens(t *testing.T) {
	database := newTestStore(t)
	ctx := context.Background()

	RevokeToken(ctx, database, "old", time.Now().Add(time.Hour))
	RevokeToken(ctx, database, "fresh", time.Now().Add(3*time.Hour))

	if err := PurgeRevokedTokens(ctx, database, time.Now().Add(2*time.Hour)); err != nil {
		t.Fatalf("PurgeRevokedTokens: %v", err)
	}

	if revoked, _ := IsTokenRevoked(ctx, database, "old"); revoked {
		t.Error("expected expired revocation to be purged")
	}
	if revoked, _ := IsTokenRevoked(ctx, database, "fresh"); !revoked {
		t.Error("expected live revocation to be kept")
	}
}
