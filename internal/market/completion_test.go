package market

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/naveenvaja/ridit-webapp/internal/db"
	"github.com/naveenvaja/ridit-webapp/internal/events"
	"github.com/naveenvaja/ridit-webapp/internal/kv"
	"github.com/naveenvaja/ridit-webapp/internal/metrics"
	"github.com/naveenvaja/ridit-webapp/internal/model"
	"github.com/naveenvaja/ridit-webapp/internal/store"
)

func TestFinalPrice(t *testing.T) {
	assert.Equal(t, 100.0, FinalPrice(model.CategoryMetal, 2.5))
	assert.Equal(t, 30.0, FinalPrice(model.CategoryPlastic, 2))
	assert.Equal(t, 0.0, FinalPrice("glass", 3))
}

// acceptedItem creates an item already assigned to collector without going
// through Accept, so no acceptance event is published.
func acceptedItem(t *testing.T, s *Service, collector *model.User, category string) *model.Item {
	t.Helper()
	seller := createSeller(t, s, "9000000099", nil)
	item := createItem(t, s, seller.Key, category, eastOfOrigin(1))
	ok, err := store.TransitionItem(context.Background(), s.db, item.ID, model.ItemStatusPending, model.ItemStatusAccepted,
		map[string]any{"accepted_by": collector.Key})
	require.NoError(t, err)
	require.True(t, ok)
	return item
}

func TestComplete(t *testing.T) {
	pub := &mockPublisher{}
	s := NewService(kv.NewSQLite(db.NewTestDB(t)), pub, metrics.New())
	ctx := context.Background()

	collector := createCollector(t, s, "9000000001", origin)
	item := acceptedItem(t, s, collector, model.CategoryMetal)

	pub.On("Publish", mock.Anything, events.SubjectItemCollected, mock.MatchedBy(func(ev events.ItemEvent) bool {
		return ev.ItemID == item.ID && ev.Status == model.ItemStatusCollected && ev.Price == 100
	})).Return(nil).Once()

	res, err := s.Complete(ctx, item.ID, collector.Key, 2.5)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.FinalPrice)
	assert.Equal(t, 2.5, res.ActualWeight)
	assert.Equal(t, item.EstimatedPrice, res.EstimatedPrice)
	assert.Equal(t, PaymentPaid, res.PaymentStatus)
	assert.Equal(t, int64(1), res.TotalCollections)
	pub.AssertExpectations(t)

	stored, _ := store.GetItem(ctx, s.db, item.ID)
	assert.Equal(t, model.ItemStatusCollected, stored.Status)
	require.NotNil(t, stored.FinalPrice)
	assert.Equal(t, 100.0, *stored.FinalPrice)
	require.NotNil(t, stored.ActualWeight)
	assert.Equal(t, 2.5, *stored.ActualWeight)
	assert.NotNil(t, stored.CollectedAt)

	user, _ := store.GetUser(ctx, s.db, collector.Key)
	assert.Equal(t, int64(1), user.TotalCollections)
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.ItemTransitions.WithLabelValues(model.ItemStatusCollected)))

	// Collected items cannot be completed again.
	_, err = s.Complete(ctx, item.ID, collector.Key, 2.5)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCompleteRejections(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	collector := createCollector(t, s, "9000000001", origin)
	other := createCollector(t, s, "9000000002", origin)
	item := acceptedItem(t, s, collector, model.CategoryPaper)
	pending := createItem(t, s, "seller", model.CategoryPaper, eastOfOrigin(1))

	_, err := s.Complete(ctx, item.ID, collector.Key, 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.Complete(ctx, "missing", collector.Key, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Complete(ctx, pending.ID, collector.Key, 1)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = s.Complete(ctx, item.ID, other.Key, 1)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.Complete(ctx, item.ID, "unknown", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	stored, _ := store.GetItem(ctx, s.db, item.ID)
	assert.Equal(t, model.ItemStatusAccepted, stored.Status)
}

func TestCompleteSurvivesPublishFailure(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("nats down"))
	s := NewService(kv.NewSQLite(db.NewTestDB(t)), pub, metrics.New())

	collector := createCollector(t, s, "9000000001", origin)
	item := acceptedItem(t, s, collector, model.CategoryEwaste)

	res, err := s.Complete(context.Background(), item.ID, collector.Key, 1)
	require.NoError(t, err)
	assert.Equal(t, 60.0, res.FinalPrice)
}

func TestCompleteCountsEachCollection(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	collector := createCollector(t, s, "9000000001", origin)
	for i := 0; i < 3; i++ {
		item := acceptedItem(t, s, collector, model.CategoryPlastic)
		_, err := s.Complete(ctx, item.ID, collector.Key, 1)
		require.NoError(t, err)
	}

	user, _ := store.GetUser(ctx, s.db, collector.Key)
	assert.Equal(t, int64(3), user.TotalCollections)
}
