package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/naveenvaja/ridit-webapp/internal/kv"
)

type setting struct {
	Value string `json:"value"`
}

// GetSetting returns a stored setting, or "" when it is unset.
func GetSetting(ctx context.Context, db kv.Store, name string) (string, error) {
	var s setting
	found, err := db.Get(ctx, kv.Join(SettingsCollection, name), &s)
	if err != nil {
		return "", fmt.Errorf("getting setting %s: %w", name, err)
	}
	if !found {
		return "", nil
	}
	return s.Value, nil
}

// SetSetting stores a setting.
func SetSetting(ctx context.Context, db kv.Store, name, value string) error {
	if err := db.Set(ctx, kv.Join(SettingsCollection, name), setting{Value: value}); err != nil {
		return fmt.Errorf("storing setting %s: %w", name, err)
	}
	return nil
}

// GetJWTSecret retrieves the JWT signing secret.
// If no secret exists, it generates one, stores it, and returns it.
func GetJWTSecret(ctx context.Context, db kv.Store) (string, error) {
	secret, err := GetSetting(ctx, db, "jwt_secret")
	if err != nil || secret != "" {
		return secret, err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	secret = hex.EncodeToString(buf)

	if err := SetSetting(ctx, db, "jwt_secret", secret); err != nil {
		return "", err
	}
	return secret, nil
}
