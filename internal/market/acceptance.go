package market

import (
	"context"
	"log/slog"

	"github.com/naveenvaja/ridit-webapp/internal/events"
	"github.com/naveenvaja/ridit-webapp/internal/geo"
	"github.com/naveenvaja/ridit-webapp/internal/model"
	"github.com/naveenvaja/ridit-webapp/internal/store"
)

// SellerContact is the seller snapshot handed to a collector on acceptance.
// Address is the seller's stored location or an empty object.
type SellerContact struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address any    `json:"address"`
}

// AcceptResult is the outcome of a successful acceptance.
type AcceptResult struct {
	ItemID         string         `json:"item_id"`
	CollectorID    string         `json:"collector_id"`
	CollectorName  string         `json:"collector_name"`
	CollectorPhone string         `json:"collector_phone"`
	EstimatedPrice float64        `json:"estimated_price"`
	DistanceKm     float64        `json:"distance_km"`
	Seller         *SellerContact `json:"seller"`
}

// Accept assigns a pending item to a collector within MaxAcceptDistanceKm of
// it. The status change is conditional on the item still being pending, so of
// two concurrent acceptances exactly one succeeds. The collector's
// subscription is not checked here.
func (s *Service) Accept(ctx context.Context, itemID, collectorID string) (*AcceptResult, error) {
	collector, err := s.resolve(ctx, collectorID, ErrCollectorNotFound)
	if err != nil {
		return nil, err
	}

	item, err := store.GetItem(ctx, s.db, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	if item.Status != model.ItemStatusPending {
		s.metrics.AcceptRejections.WithLabelValues("not_pending").Inc()
		return nil, ErrItemNotPending
	}

	if collector.Location == nil {
		return nil, ErrCollectorLocationMissing
	}

	sellers := newSellerCache(s)
	point, err := sellers.itemLocation(ctx, item)
	if err != nil {
		return nil, err
	}
	if point == nil {
		return nil, ErrItemLocationMissing
	}

	distance := geo.Distance(geo.Point{Lat: collector.Location.Latitude, Lng: collector.Location.Longitude}, *point)
	if distance > MaxAcceptDistanceKm {
		s.metrics.AcceptRejections.WithLabelValues("too_far").Inc()
		return nil, &TooFarError{DistanceKm: distance}
	}

	ok, err := store.TransitionItem(ctx, s.db, item.ID, model.ItemStatusPending, model.ItemStatusAccepted, map[string]any{
		"accepted_by":     collector.Key,
		"collector_name":  collector.Name,
		"collector_phone": collector.Phone,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.AcceptRejections.WithLabelValues("lost_race").Inc()
		return nil, ErrItemNotPending
	}
	s.metrics.ItemTransitions.WithLabelValues(model.ItemStatusAccepted).Inc()
	slog.Info("item accepted", "item", item.ID, "collector", collector.Key, "distance_km", geo.Round2(distance))

	item.Status = model.ItemStatusAccepted
	item.AcceptedBy = collector.Key
	s.publish(ctx, events.SubjectItemAccepted, item, item.EstimatedPrice)

	result := &AcceptResult{
		ItemID:         item.ID,
		CollectorID:    collector.Key,
		CollectorName:  collector.Name,
		CollectorPhone: collector.Phone,
		EstimatedPrice: item.EstimatedPrice,
		DistanceKm:     geo.Round2(distance),
	}
	seller, err := sellers.get(ctx, item.SellerID)
	if err != nil {
		return nil, err
	}
	if seller != nil {
		result.Seller = &SellerContact{
			ID:      seller.Key,
			Name:    seller.Name,
			Phone:   seller.Phone,
			Address: struct{}{},
		}
		if seller.Location != nil {
			result.Seller.Address = seller.Location
		}
	}
	return result, nil
}

// AcceptedList is the outcome of ListAccepted.
type AcceptedList struct {
	Items []model.Item `json:"items"`
	Count int          `json:"count"`
}

// ListAccepted returns the items a collector has accepted but not yet
// collected. Seller name and phone are refreshed from the seller's current
// record, or set to "Unknown" and "N/A" if the seller no longer exists.
func (s *Service) ListAccepted(ctx context.Context, collectorID string) (*AcceptedList, error) {
	collector, err := s.resolve(ctx, collectorID, ErrCollectorNotFound)
	if err != nil {
		return nil, err
	}

	items, err := store.ListItems(ctx, s.db, store.ItemFilter{Status: model.ItemStatusAccepted})
	if err != nil {
		return nil, err
	}

	sellers := newSellerCache(s)
	list := &AcceptedList{Items: []model.Item{}}
	for _, item := range items {
		if !refersTo(item.AcceptedBy, collector) {
			continue
		}

		item.SellerName, item.SellerPhone = "Unknown", "N/A"
		if item.SellerID != "" {
			seller, err := sellers.get(ctx, item.SellerID)
			if err != nil {
				return nil, err
			}
			if seller != nil {
				item.SellerName, item.SellerPhone = seller.Name, seller.Phone
			}
		}
		list.Items = append(list.Items, item)
	}
	list.Count = len(list.Items)
	return list, nil
}
