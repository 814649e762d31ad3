package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/naveenvaja/ridit-webapp/internal/kv"
	"github.com/naveenvaja/ridit-webapp/internal/model"
)

// Collections of the document tree.
const (
	UsersCollection    = "users"
	ItemsCollection    = "items"
	SettingsCollection = "settings"
	RevokedCollection  = "revoked_tokens"
)

func userPath(key string) string { return kv.Join(UsersCollection, key) }

// CreateUser stores a new user under a generated key, which also becomes its
// id. Timestamps are stamped here. The user's phone and email are claimed
// first; if either belongs to someone else ErrContactTaken is returned and
// nothing is stored.
func CreateUser(ctx context.Context, db kv.Store, u *model.User) (*model.User, error) {
	key, err := kv.NewKey()
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	if err := claimContacts(ctx, db, u.Phone, u.Email, key); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	now := time.Now().UTC()
	u.Key = key
	u.ID = key
	u.CreatedAt = now
	u.UpdatedAt = now

	if err := db.Set(ctx, userPath(key), u); err != nil {
		releaseContacts(ctx, db, u.Phone, u.Email, key)
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// ChangePhone moves a user to a new phone number. The new number is claimed
// before the record changes and the old claim is released afterwards.
func ChangePhone(ctx context.Context, db kv.Store, key, oldPhone, newPhone string) error {
	ok, err := ClaimPhone(ctx, db, newPhone, key)
	if err != nil {
		return fmt.Errorf("changing phone: %w", err)
	}
	if !ok {
		return fmt.Errorf("changing phone: %w", ErrContactTaken)
	}

	if err := UpdateUser(ctx, db, key, map[string]any{"phone": newPhone}); err != nil {
		ReleasePhone(ctx, db, newPhone, key)
		return err
	}
	if oldPhone != "" && oldPhone != newPhone {
		if err := ReleasePhone(ctx, db, oldPhone, key); err != nil {
			return err
		}
	}
	return nil
}

// GetUser returns a user by record key.
func GetUser(ctx context.Context, db kv.Store, key string) (*model.User, error) {
	if key == "" {
		return nil, nil
	}
	u := &model.User{}
	found, err := db.Get(ctx, userPath(key), u)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	if !found {
		return nil, nil
	}
	u.Key = key
	return u, nil
}

// ResolveUser canonicalizes a user identifier. The identifier may be the
// record key, or the user's id, email or phone. A direct key lookup is tried
// first, then all users are scanned and the first match wins. The returned
// user's Key is the canonical key every later read or write must use.
func ResolveUser(ctx context.Context, db kv.Store, identifier string) (*model.User, error) {
	if identifier == "" {
		return nil, nil
	}

	u, err := GetUser(ctx, db, identifier)
	if err != nil || u != nil {
		return u, err
	}

	return FindUser(ctx, db, func(u *model.User) bool {
		return u.ID == identifier || u.Email == identifier || u.Phone == identifier
	})
}

// FindUserByLogin returns the user whose phone or email equals identifier.
func FindUserByLogin(ctx context.Context, db kv.Store, identifier string) (*model.User, error) {
	if identifier == "" {
		return nil, nil
	}
	return FindUser(ctx, db, func(u *model.User) bool {
		return u.Phone == identifier || u.Email == identifier
	})
}

// FindUser returns the first user, in key order, for which match is true.
func FindUser(ctx context.Context, db kv.Store, match func(*model.User) bool) (*model.User, error) {
	users, err := ListUsers(ctx, db)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if match(&users[i]) {
			return &users[i], nil
		}
	}
	return nil, nil
}

// ListUsers returns all users ordered by key. Records that do not decode as
// users are logged and skipped.
func ListUsers(ctx context.Context, db kv.Store) ([]model.User, error) {
	entries, err := db.List(ctx, UsersCollection)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	users := make([]model.User, 0, len(entries))
	for _, e := range entries {
		var u model.User
		if err := e.Decode(&u); err != nil {
			slog.Warn("skipping undecodable user", "key", e.Key, "error", err)
			continue
		}
		u.Key = e.Key
		users = append(users, u)
	}
	return users, nil
}

// UpdateUser merges fields into a user and stamps updated_at.
func UpdateUser(ctx context.Context, db kv.Store, key string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	if err := db.Update(ctx, userPath(key), fields); err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}

// SetUserLocation replaces a user's location sub-record.
func SetUserLocation(ctx context.Context, db kv.Store, key string, loc model.Location) error {
	return UpdateUser(ctx, db, key, map[string]any{"location": loc})
}

// SetSubscription replaces a user's subscription sub-record.
func SetSubscription(ctx context.Context, db kv.Store, key string, sub model.Subscription) error {
	return UpdateUser(ctx, db, key, map[string]any{"subscription": sub})
}

// DeactivateExpiredSubscription marks sub inactive, keeping its other fields,
// but only while the stored expiry still equals sub.ExpiryDate. It reports
// false when a renewal changed the subscription in the meantime.
func DeactivateExpiredSubscription(ctx context.Context, db kv.Store, key string, sub model.Subscription) (bool, error) {
	sub.Status = model.SubscriptionInactive
	ok, err := db.CompareAndUpdate(ctx, userPath(key), "subscription.expiry_date", sub.ExpiryDate, map[string]any{
		"subscription": sub,
		"updated_at":   time.Now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("deactivating subscription: %w", err)
	}
	return ok, nil
}

// IncrementCollections atomically adds one to a collector's lifetime
// collection counter and returns the new value.
func IncrementCollections(ctx context.Context, db kv.Store, key string) (int64, error) {
	n, err := db.Increment(ctx, userPath(key), "total_collections", 1)
	if err != nil {
		return 0, fmt.Errorf("incrementing collections: %w", err)
	}
	return n, nil
}
