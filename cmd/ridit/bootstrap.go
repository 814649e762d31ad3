package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/naveenvaja/ridit-webapp/internal/auth"
	"github.com/naveenvaja/ridit-webapp/internal/config"
	"github.com/naveenvaja/ridit-webapp/internal/db"
	"github.com/naveenvaja/ridit-webapp/internal/kv"
	"github.com/naveenvaja/ridit-webapp/internal/model"
	"github.com/naveenvaja/ridit-webapp/internal/store"
)

// openStore opens the document store selected by cfg.Store.Driver.
func openStore(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		s, err := kv.NewRedis(ctx, kv.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("store ready", "driver", config.DriverRedis, "addr", cfg.Redis.Addr)
		return s, nil
	default:
		database, err := db.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		// Ensure schema exists (idempotent).
		if err := db.EnsureSchema(database); err != nil {
			database.Close()
			return nil, fmt.Errorf("ensuring schema: %w", err)
		}
		slog.Info("store ready", "driver", config.DriverSQLite, "path", cfg.Store.SQLitePath)
		return kv.NewSQLite(database), nil
	}
}

// ensureAdmin creates the admin account if no admin exists yet. It returns
// the generated password, or "" when an admin was already present.
func ensureAdmin(ctx context.Context, s kv.Store, email string) (string, error) {
	admin, err := store.FindUser(ctx, s, func(u *model.User) bool {
		return u.Role == model.RoleAdmin
	})
	if err != nil {
		return "", fmt.Errorf("looking up admin: %w", err)
	}
	if admin != nil {
		return "", nil
	}

	password, err := generatePassword(16)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	_, err = store.CreateUser(ctx, s, &model.User{
		Name:         "Admin",
		Email:        email,
		Role:         model.RoleAdmin,
		PasswordHash: hash,
		AuthProvider: model.ProviderPassword,
	})
	if err != nil {
		return "", fmt.Errorf("creating admin user: %w", err)
	}
	return password, nil
}

// printAdminCreated prints the bootstrap admin credentials to stdout.
func printAdminCreated(email, password string) {
	fmt.Println("Admin account created:")
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password. It is shown only once and cannot be recovered.")
	fmt.Println()
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
