package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/naveenvaja/ridit-webapp/internal/kv"
)

// Claim collections map a phone number or email to the user holding it.
const (
	PhonesCollection = "phones"
	EmailsCollection = "emails"
)

// ErrContactTaken is returned when a phone number or email belongs to
// another user.
var ErrContactTaken = errors.New("phone number or email already registered")

type contactClaim struct {
	UserID    string    `json:"user_id"`
	ClaimedAt time.Time `json:"claimed_at"`
}

func phonePath(phone string) string { return kv.Join(PhonesCollection, url.PathEscape(phone)) }

func emailPath(email string) string {
	return kv.Join(EmailsCollection, url.PathEscape(strings.ToLower(email)))
}

// ClaimPhone reserves phone for userKey. It reports false when another user
// holds it; claiming a phone the user already holds succeeds.
func ClaimPhone(ctx context.Context, db kv.Store, phone, userKey string) (bool, error) {
	return claim(ctx, db, phonePath(phone), userKey)
}

// ClaimEmail reserves a case-folded email for userKey.
func ClaimEmail(ctx context.Context, db kv.Store, email, userKey string) (bool, error) {
	return claim(ctx, db, emailPath(email), userKey)
}

// ReleasePhone drops userKey's claim on phone. Claims held by other users are
// left alone.
func ReleasePhone(ctx context.Context, db kv.Store, phone, userKey string) error {
	return release(ctx, db, phonePath(phone), userKey)
}

// ReleaseEmail drops userKey's claim on email.
func ReleaseEmail(ctx context.Context, db kv.Store, email, userKey string) error {
	return release(ctx, db, emailPath(email), userKey)
}

func claim(ctx context.Context, db kv.Store, path, userKey string) (bool, error) {
	created, err := db.Create(ctx, path, contactClaim{UserID: userKey, ClaimedAt: time.Now().UTC()})
	if err != nil {
		return false, fmt.Errorf("claiming %s: %w", path, err)
	}
	if created {
		return true, nil
	}

	var existing contactClaim
	found, err := db.Get(ctx, path, &existing)
	if err != nil {
		return false, fmt.Errorf("claiming %s: %w", path, err)
	}
	return found && existing.UserID == userKey, nil
}

func release(ctx context.Context, db kv.Store, path, userKey string) error {
	var existing contactClaim
	found, err := db.Get(ctx, path, &existing)
	if err != nil {
		return fmt.Errorf("releasing %s: %w", path, err)
	}
	if !found || existing.UserID != userKey {
		return nil
	}
	if err := db.Delete(ctx, path); err != nil {
		return fmt.Errorf("releasing %s: %w", path, err)
	}
	return nil
}

// claimContacts reserves a new user's phone and email, undoing the phone
// claim if the email is taken.
func claimContacts(ctx context.Context, db kv.Store, phone, email, userKey string) error {
	if phone != "" {
		ok, err := ClaimPhone(ctx, db, phone, userKey)
		if err != nil {
			return err
		}
		if !ok {
			return ErrContactTaken
		}
	}
	if email != "" {
		ok, err := ClaimEmail(ctx, db, email, userKey)
		if err == nil && !ok {
			err = ErrContactTaken
		}
		if err != nil {
			if phone != "" {
				ReleasePhone(ctx, db, phone, userKey)
			}
			return err
		}
	}
	return nil
}

func releaseContacts(ctx context.Context, db kv.Store, phone, email, userKey string) {
	if phone != "" {
		ReleasePhone(ctx, db, phone, userKey)
	}
	if email != "" {
		ReleaseEmail(ctx, db, email, userKey)
	}
}
