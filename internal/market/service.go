// Package market implements the marketplace workflows: locations,
// subscription gating, item matching, acceptance, completion and the seller
// item lifecycle.
package market

import (
	"context"
	"log/slog"
	"time"

	"github.com/naveenvaja/ridit-webapp/internal/events"
	"github.com/naveenvaja/ridit-webapp/internal/kv"
	"github.com/naveenvaja/ridit-webapp/internal/metrics"
	"github.com/naveenvaja/ridit-webapp/internal/model"
	"github.com/naveenvaja/ridit-webapp/internal/store"
)

// Service runs the marketplace workflows against a store.
type Service struct {
	db      kv.Store
	events  events.Publisher
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService creates a Service. A nil publisher discards events and nil
// metrics are replaced by an unexported registry.
func NewService(db kv.Store, pub events.Publisher, m *metrics.Metrics) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if m == nil {
		m = metrics.New()
	}
	return &Service{db: db, events: pub, metrics: m, now: time.Now}
}

// Actor is the authenticated user performing an operation.
type Actor struct {
	Key  string
	Role string
}

// IsAdmin reports whether the actor bypasses ownership checks.
func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// ResolveUser canonicalizes a user identifier, failing with ErrUserNotFound.
func (s *Service) ResolveUser(ctx context.Context, identifier string) (*model.User, error) {
	return s.resolve(ctx, identifier, ErrUserNotFound)
}

func (s *Service) resolve(ctx context.Context, identifier string, notFound error) (*model.User, error) {
	u, err := store.ResolveUser(ctx, s.db, identifier)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, notFound
	}
	return u, nil
}

// refersTo reports whether a stored user reference points at u. References
// written by this service hold the record key; older records may hold the
// logical id.
func refersTo(ref string, u *model.User) bool {
	return ref != "" && (ref == u.Key || ref == u.ID)
}

func (s *Service) publish(ctx context.Context, subject string, item *model.Item, price float64) {
	ev := events.ItemEvent{
		ItemID:      item.ID,
		Status:      item.Status,
		Category:    item.Category,
		SellerID:    item.SellerID,
		CollectorID: item.AcceptedBy,
		Price:       price,
		OccurredAt:  s.now().UTC(),
	}
	if err := s.events.Publish(ctx, subject, ev); err != nil {
		slog.Warn("publishing event failed", "subject", subject, "item", item.ID, "error", err)
	}
}
