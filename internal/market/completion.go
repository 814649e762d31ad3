package market

import (
	"context"
	"log/slog"

	"github.com/naveenvaja/ridit-webapp/internal/events"
	"github.com/naveenvaja/ridit-webapp/internal/model"
	"github.com/naveenvaja/ridit-webapp/internal/store"
)

// PaymentPaid is the payment status reported for every completed collection.
const PaymentPaid = "paid"

// CompletionResult is the outcome of a successful collection.
type CompletionResult struct {
	ItemID           string  `json:"item_id"`
	ActualWeight     float64 `json:"actual_weight"`
	EstimatedPrice   float64 `json:"estimated_price"`
	FinalPrice       float64 `json:"final_price"`
	PaymentStatus    string  `json:"payment_status"`
	TotalCollections int64   `json:"total_collections"`
}

// FinalPrice is the category's unit rate times the weighed amount. Unknown
// categories price at zero.
func FinalPrice(category string, weightKg float64) float64 {
	return model.PricePerKg(category) * weightKg
}

// Complete records the pickup of an accepted item by the collector it was
// assigned to, and counts the collection for the collector.
func (s *Service) Complete(ctx context.Context, itemID, collectorID string, actualWeight float64) (*CompletionResult, error) {
	if actualWeight <= 0 {
		return nil, validationError("actual_weight must be greater than 0")
	}

	item, err := store.GetItem(ctx, s.db, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	if item.Status != model.ItemStatusAccepted {
		return nil, ErrItemNotAccepted
	}

	collector, err := s.resolve(ctx, collectorID, ErrCollectorNotFound)
	if err != nil {
		return nil, err
	}
	if !refersTo(item.AcceptedBy, collector) {
		return nil, ErrWrongCollector
	}

	finalPrice := FinalPrice(item.Category, actualWeight)
	collectedAt := s.now().UTC()

	ok, err := store.TransitionItem(ctx, s.db, item.ID, model.ItemStatusAccepted, model.ItemStatusCollected, map[string]any{
		"actual_weight": actualWeight,
		"final_price":   finalPrice,
		"collected_at":  collectedAt,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrItemNotAccepted
	}
	s.metrics.ItemTransitions.WithLabelValues(model.ItemStatusCollected).Inc()

	// The item is collected at this point; a failed counter update is logged
	// rather than reported.
	total, err := store.IncrementCollections(ctx, s.db, collector.Key)
	if err != nil {
		slog.Error("counting collection failed", "collector", collector.Key, "item", item.ID, "error", err)
	}
	slog.Info("item collected", "item", item.ID, "collector", collector.Key, "weight", actualWeight, "final_price", finalPrice)

	item.Status = model.ItemStatusCollected
	item.CollectedAt = &collectedAt
	s.publish(ctx, events.SubjectItemCollected, item, finalPrice)

	return &CompletionResult{
		ItemID:           item.ID,
		ActualWeight:     actualWeight,
		EstimatedPrice:   item.EstimatedPrice,
		FinalPrice:       finalPrice,
		PaymentStatus:    PaymentPaid,
		TotalCollections: total,
	}, nil
}

