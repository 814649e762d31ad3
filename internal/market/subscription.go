package market

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/naveenvaja/ridit-webapp/internal/model"
	"github.com/naveenvaja/ridit-webapp/internal/store"
)

// Subscription defaults for activation.
const (
	DefaultPlan     = "basic"
	DefaultPlanDays = 30
)

// CheckActive returns the collector if its subscription is active. An active
// subscription whose expiry has passed is switched to inactive, unless it was
// renewed in the meantime, and rejected with ErrSubscriptionExpired.
func (s *Service) CheckActive(ctx context.Context, collectorID string) (*model.User, error) {
	// One retry covers a renewal landing between the read and the
	// deactivation.
	for attempt := 0; ; attempt++ {
		collector, err := s.resolve(ctx, collectorID, ErrCollectorNotFound)
		if err != nil {
			return nil, err
		}

		sub := collector.Subscription
		if sub == nil || sub.Status != model.SubscriptionActive {
			return nil, ErrSubscriptionInactive
		}

		expired, err := sub.Expired(s.now())
		if err != nil {
			return nil, fmt.Errorf("checking subscription: %w", err)
		}
		if !expired {
			return collector, nil
		}

		ok, err := store.DeactivateExpiredSubscription(ctx, s.db, collector.Key, *sub)
		if err != nil {
			return nil, err
		}
		if ok || attempt > 0 {
			if ok {
				s.metrics.SubscriptionsExpired.Inc()
				slog.Info("subscription expired", "collector", collector.Key, "expiry", sub.ExpiryDate)
			}
			return nil, ErrSubscriptionExpired
		}
	}
}

// SubscriptionView is one row of the subscription listing.
type SubscriptionView struct {
	CollectorID   string `json:"collector_id"`
	CollectorName string `json:"collector_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Status        string `json:"status"`
	PlanType      string `json:"plan_type"`
	ExpiryDate    string `json:"expiry_date,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
}

func subscriptionView(u *model.User) SubscriptionView {
	v := SubscriptionView{
		CollectorID:   u.Key,
		CollectorName: u.Name,
		Email:         u.Email,
		Phone:         u.Phone,
		Status:        model.SubscriptionInactive,
		PlanType:      model.PlanNone,
	}
	if v.CollectorName == "" {
		v.CollectorName = "Unknown"
	}
	if sub := u.Subscription; sub != nil {
		if sub.Status != "" {
			v.Status = sub.Status
		}
		if sub.PlanType != "" {
			v.PlanType = sub.PlanType
		}
		v.ExpiryDate = sub.ExpiryDate
		v.CreatedAt = sub.CreatedAt
		v.CancelledAt = sub.CancelledAt
	}
	return v
}

// ActivateSubscription activates or renews a collector's subscription for
// days from now. Empty plan and zero days take the defaults.
func (s *Service) ActivateSubscription(ctx context.Context, collectorID, plan string, days int) (*SubscriptionView, error) {
	if plan == "" {
		plan = DefaultPlan
	}
	if days == 0 {
		days = DefaultPlanDays
	}
	if days < 0 {
		return nil, validationError("days_valid must be positive")
	}

	collector, err := s.resolve(ctx, collectorID, ErrCollectorNotFound)
	if err != nil {
		return nil, err
	}
	if collector.Role != model.RoleCollector {
		return nil, ErrNotCollector
	}

	now := s.now()
	sub := model.Subscription{
		Status:     model.SubscriptionActive,
		PlanType:   plan,
		ExpiryDate: model.FormatTimestamp(now.Add(time.Duration(days) * 24 * time.Hour)),
		CreatedAt:  model.FormatTimestamp(now),
	}
	if err := store.SetSubscription(ctx, s.db, collector.Key, sub); err != nil {
		return nil, err
	}
	slog.Info("subscription activated", "collector", collector.Key, "plan", plan, "expiry", sub.ExpiryDate)

	collector.Subscription = &sub
	v := subscriptionView(collector)
	return &v, nil
}

// CancelSubscription deactivates a collector's subscription and clears its
// plan and expiry.
func (s *Service) CancelSubscription(ctx context.Context, collectorID string) (*SubscriptionView, error) {
	collector, err := s.resolve(ctx, collectorID, ErrCollectorNotFound)
	if err != nil {
		return nil, err
	}

	sub := model.Subscription{
		Status:      model.SubscriptionInactive,
		PlanType:    model.PlanNone,
		CancelledAt: model.FormatTimestamp(s.now()),
	}
	if err := store.SetSubscription(ctx, s.db, collector.Key, sub); err != nil {
		return nil, err
	}
	slog.Info("subscription cancelled", "collector", collector.Key)

	collector.Subscription = &sub
	v := subscriptionView(collector)
	return &v, nil
}

// ListSubscriptions returns one row per collector.
func (s *Service) ListSubscriptions(ctx context.Context) ([]SubscriptionView, error) {
	users, err := store.ListUsers(ctx, s.db)
	if err != nil {
		return nil, err
	}

	views := []SubscriptionView{}
	for i := range users {
		if users[i].Role == model.RoleCollector {
			views = append(views, subscriptionView(&users[i]))
		}
	}
	return views, nil
}
