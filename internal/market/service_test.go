package market

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/naveenvaja/ridit-webapp/internal/db"
	"github.com/naveenvaja/ridit-webapp/internal/events"
	"github.com/naveenvaja/ridit-webapp/internal/geo"
	"github.com/naveenvaja/ridit-webapp/internal/kv"
	"github.com/naveenvaja/ridit-webapp/internal/metrics"
	"github.com/naveenvaja/ridit-webapp/internal/model"
	"github.com/naveenvaja/ridit-webapp/internal/store"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, event events.ItemEvent) error {
	args := m.Called(ctx, subject, event)
	return args.Error(0)
}

func (m *mockPublisher) Close() {}

// newTestService returns a service over an in-memory store whose publisher
// accepts any event.
func newTestService(t *testing.T) *Service {
	t.Helper()
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return NewService(kv.NewSQLite(db.NewTestDB(t)), pub, metrics.New())
}

func activeSubscription() *model.Subscription {
	return &model.Subscription{
		Status:     model.SubscriptionActive,
		PlanType:   DefaultPlan,
		ExpiryDate: model.FormatTimestamp(time.Now().Add(24 * time.Hour)),
	}
}

func createUser(t *testing.T, s *Service, u model.User) *model.User {
	t.Helper()
	created, err := store.CreateUser(context.Background(), s.db, &u)
	require.NoError(t, err)
	return created
}

func createCollector(t *testing.T, s *Service, phone string, loc *model.Location) *model.User {
	t.Helper()
	return createUser(t, s, model.User{
		Name:         "Collector " + phone,
		Phone:        phone,
		Role:         model.RoleCollector,
		Location:     loc,
		Subscription: activeSubscription(),
	})
}

func createSeller(t *testing.T, s *Service, phone string, loc *model.Location) *model.User {
	t.Helper()
	return createUser(t, s, model.User{
		Name:     "Seller " + phone,
		Phone:    phone,
		Role:     model.RoleSeller,
		Location: loc,
	})
}

func createItem(t *testing.T, s *Service, sellerKey, category string, coords *geo.Point) *model.Item {
	t.Helper()
	item, err := store.CreateItem(context.Background(), s.db, &model.Item{
		Category:       category,
		Quantity:       "2",
		Description:    "a bag of recyclables",
		Address:        model.Address{City: "Bengaluru", Coordinates: coords},
		SellerID:       sellerKey,
		EstimatedPrice: model.PricePerKg(category) * 2,
		Status:         model.ItemStatusPending,
	})
	require.NoError(t, err)
	return item
}

// eastOfOrigin returns the point on the equator km kilometres east of (0,0).
func eastOfOrigin(km float64) *geo.Point {
	return &geo.Point{Lat: 0, Lng: km / geo.EarthRadiusKm * 180 / math.Pi}
}

func ptr[T any](v T) *T { return &v }
