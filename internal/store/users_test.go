package store

import (
	"context"
	"testing"
	"time"

	"github.com/naveenvaja/ridit-webapp/internal/db"
	"github.com/naveenvaja/ridit-webapp/internal/kv"
	"github.com/naveenvaja/ridit-webapp/internal/model"
)

func newTestStore(t *testing.T) kv.Store {
	t.Helper()
	return kv.NewSQLite(db.NewTestDB(t))
}

func TestCreateAndGetUser(t *testing.T) {
	database := newTestStore(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, &model.User{Name: "Asha", Phone: "9876543210", Role: model.RoleSeller})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Key == "" || user.ID != user.Key {
		t.Errorf("expected id to equal key, got id=%q key=%q", user.ID, user.Key)
	}

	got, err := GetUser(ctx, database, user.Key)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got == nil {
		t.Fatal("expected user, got nil")
	}
	if got.Name != "Asha" {
		t.Errorf("expected name 'Asha', got %q", got.Name)
	}
	if got.Role != model.RoleSeller {
		t.Errorf("expected role 'seller', got %q", got.Role)
	}

	missing, err := GetUser(ctx, database, "nobody")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestResolveUser(t *testing.T) {
	database := newTestStore(t)
	ctx := context.Background()

	// A record whose id field differs from its key, as written by other clients.
	database.Set(ctx, "users/legacy-key", model.User{
		ID:    "logical-id",
		Name:  "Ravi",
		Phone: "9000000001",
		Email: "ravi@example.com",
		Role:  model.RoleCollector,
	})

	for _, identifier := range []string{"legacy-key", "logical-id", "ravi@example.com", "9000000001"} {
		u, err := ResolveUser(ctx, database, identifier)
		if err != nil {
			t.Fatalf("ResolveUser(%q): %v", identifier, err)
		}
		if u == nil {
			t.Fatalf("ResolveUser(%q): expected user, got nil", identifier)
		}
		if u.Key != "legacy-key" {
			t.Errorf("ResolveUser(%q): expected key 'legacy-key', got %q", identifier, u.Key)
		}
	}

	u, err := ResolveUser(ctx, database, "unknown")
	if err != nil {
		t.Fatalf("ResolveUser: %v", err)
	}
	if u != nil {
		t.Error("expected nil for unresolved identifier")
	}
}

func TestFindUserByLogin(t *testing.T) {
	database := newTestStore(t)
	ctx := context.Background()

	CreateUser(ctx, database, &model.User{Name: "Asha", Phone: "9876543210", Email: "asha@example.com", Role: model.RoleSeller})

	byPhone, _ := FindUserByLogin(ctx, database, "9876543210")
	byEmail, _ := FindUserByLogin(ctx, database, "asha@example.com")
	if byPhone == nil || byEmail == nil {
		t.Fatal("expected user by phone and email")
	}
	if byPhone.Key != byEmail.Key {
		t.Errorf("expected same user, got %q and %q", byPhone.Key, byEmail.Key)
	}

	missing, _ := FindUserByLogin(ctx, database, "")
	if missing != nil {
		t.Error("expected nil for empty identifier")
	}
}

func TestListUsers(t *testing.T) {
	database := newTestStore(t)
	ctx := context.Background()

	CreateUser(ctx, database, &model.User{Name: "a", Role: model.RoleSeller})
	CreateUser(ctx, database, &model.User{Name: "b", Role: model.RoleCollector})

	users, err := ListUsers(ctx, database)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}

	database.Set(ctx, "users/zoneless", map[string]any{"name": "c", "user_type": "seller", "created_at": "2025-03-01T12:00:00"})
	database.Set(ctx, "users/broken", map[string]any{"name": 42})

	users, err = ListUsers(ctx, database)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 3 {
		t.Errorf("expected 3 decodable users, got %d", len(users))
	}
}

func TestSetUserLocation(t *testing.T) {
	database := newTestStore(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, &model.User{Name: "c", Role: model.RoleCollector})
	err := SetUserLocation(ctx, database, user.Key, model.Location{Latitude: 12.97, Longitude: 77.59, SearchRadiusKm: 5})
	if err != nil {
		t.Fatalf("SetUserLocation: %v", err)
	}

	got, _ := GetUser(ctx, database, user.Key)
	if got.Location == nil {
		t.Fatal("expected location to be set")
	}
	if got.Location.SearchRadiusKm != 5 {
		t.Errorf("expected radius 5, got %v", got.Location.SearchRadiusKm)
	}
	if got.Name != "c" {
		t.Errorf("expected other fields to be kept, got name %q", got.Name)
	}
}

func TestDeactivateExpiredSubscription(t *testing.T) {
	database := newTestStore(t)
	ctx := context.Background()

	expiry := model.FormatTimestamp(time.Now().Add(-time.Hour))
	sub := model.Subscription{Status: model.SubscriptionActive, PlanType: "basic", ExpiryDate: expiry}
	user, _ := CreateUser(ctx, database, &model.User{Name: "c", Role: model.RoleCollector, Subscription: &sub})

	// A renewal lands before the deactivation.
	renewed := model.Subscription{
		Status:     model.SubscriptionActive,
		PlanType:   "basic",
		ExpiryDate: model.FormatTimestamp(time.Now().Add(30 * 24 * time.Hour)),
	}
	SetSubscription(ctx, database, user.Key, renewed)

	ok, err := DeactivateExpiredSubscription(ctx, database, user.Key, sub)
	if err != nil {
		t.Fatalf("DeactivateExpiredSubscription: %v", err)
	}
	if ok {
		t.Error("expected stale deactivation to be rejected")
	}
	got, _ := GetUser(ctx, database, user.Key)
	if got.Subscription.Status != model.SubscriptionActive {
		t.Errorf("expected renewed subscription to stay active, got %q", got.Subscription.Status)
	}

	ok, _ = DeactivateExpiredSubscription(ctx, database, user.Key, renewed)
	if !ok {
		t.Fatal("expected matching deactivation to succeed")
	}
	got, _ = GetUser(ctx, database, user.Key)
	if got.Subscription.Status != model.SubscriptionInactive {
		t.Errorf("expected status 'inactive', got %q", got.Subscription.Status)
	}
	if got.Subscription.PlanType != "basic" {
		t.Errorf("expected plan to be kept, got %q", got.Subscription.PlanType)
	}
}

func TestIncrementCollections(t *testing.T) {
	database := newTestStore(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, &model.User{Name: "c", Role: model.RoleCollector})
	IncrementCollections(ctx, database, user.Key)
	n, err := IncrementCollections(ctx, database, user.Key)
	if err != nil {
		t.Fatalf("IncrementCollections: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2, got %d", n)
	}

	got, _ := GetUser(ctx, database, user.Key)
	if got.TotalCollections != 2 {
		t.Errorf("expected total_collections 2, got %d", got.TotalCollections)
	}
}
