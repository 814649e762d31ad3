package market

import (
	"context"
	"encoding/json"

	"github.com/naveenvaja/ridit-webapp/internal/geo"
	"github.com/naveenvaja/ridit-webapp/internal/model"
	"github.com/naveenvaja/ridit-webapp/internal/store"
)

// SearchQuery selects available items for a collector. Latitude and
// Longitude are used only when both are set; otherwise the collector's stored
// location and radius apply. A zero RadiusKm means DefaultRadiusKm.
type SearchQuery struct {
	CollectorID string
	Category    string
	Latitude    *float64
	Longitude   *float64
	RadiusKm    float64
}

// AvailableItem is a pending item with its distance from the collector, when
// both positions are known.
type AvailableItem struct {
	model.Item
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// UnmarshalJSON decodes the item and its distance. Without it the embedded
// item's decoder would drop distance_km.
func (a *AvailableItem) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &a.Item); err != nil {
		return err
	}
	var extra struct {
		DistanceKm *float64 `json:"distance_km"`
	}
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	a.DistanceKm = extra.DistanceKm
	return nil
}

// SearchOrigin is the position and radius a search was run with.
type SearchOrigin struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	RadiusKm  float64  `json:"radius_km"`
}

// SearchResult is the outcome of FindAvailable.
type SearchResult struct {
	Items             []AvailableItem `json:"items"`
	TotalCount        int             `json:"total_count"`
	CollectorLocation SearchOrigin    `json:"collector_location"`
}

// FindAvailable lists the pending items a subscribed collector may accept,
// in store order. Items whose location can be resolved are dropped when they
// lie beyond the search radius; items without a location are always kept.
func (s *Service) FindAvailable(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	collector, err := s.CheckActive(ctx, q.CollectorID)
	if err != nil {
		return nil, err
	}

	origin := SearchOrigin{Latitude: q.Latitude, Longitude: q.Longitude, RadiusKm: q.RadiusKm}
	if origin.Latitude == nil || origin.Longitude == nil {
		origin.Latitude, origin.Longitude = nil, nil
		if loc := collector.Location; loc != nil {
			lat, lng := loc.Latitude, loc.Longitude
			origin.Latitude, origin.Longitude = &lat, &lng
			if loc.SearchRadiusKm > 0 {
				origin.RadiusKm = loc.SearchRadiusKm
			}
		}
	}
	if origin.RadiusKm <= 0 {
		origin.RadiusKm = DefaultRadiusKm
	}

	items, err := store.ListItems(ctx, s.db, store.ItemFilter{
		Status:   model.ItemStatusPending,
		Category: q.Category,
	})
	if err != nil {
		return nil, err
	}

	sellers := newSellerCache(s)
	result := &SearchResult{Items: []AvailableItem{}, CollectorLocation: origin}
	for i := range items {
		avail := AvailableItem{Item: items[i]}

		if origin.Latitude != nil {
			point, err := sellers.itemLocation(ctx, &items[i])
			if err != nil {
				return nil, err
			}
			if point != nil {
				d := geo.Distance(geo.Point{Lat: *origin.Latitude, Lng: *origin.Longitude}, *point)
				if d > origin.RadiusKm {
					continue
				}
				rounded := geo.Round2(d)
				avail.DistanceKm = &rounded
			}
		}

		result.Items = append(result.Items, avail)
	}
	result.TotalCount = len(result.Items)
	return result, nil
}

// sellerCache resolves each seller once per request.
type sellerCache struct {
	s     *Service
	users map[string]*model.User
}

func newSellerCache(s *Service) *sellerCache {
	return &sellerCache{s: s, users: map[string]*model.User{}}
}

func (c *sellerCache) get(ctx context.Context, id string) (*model.User, error) {
	if u, ok := c.users[id]; ok {
		return u, nil
	}
	u, err := store.ResolveUser(ctx, c.s.db, id)
	if err != nil {
		return nil, err
	}
	c.users[id] = u
	return u, nil
}

// itemLocation is the seller's current location if set, otherwise the
// coordinates captured with the item's address. It returns nil when neither
// is known.
func (c *sellerCache) itemLocation(ctx context.Context, item *model.Item) (*geo.Point, error) {
	if item.SellerID != "" {
		seller, err := c.get(ctx, item.SellerID)
		if err != nil {
			return nil, err
		}
		if seller != nil && seller.Location != nil {
			return &geo.Point{Lat: seller.Location.Latitude, Lng: seller.Location.Longitude}, nil
		}
	}
	return item.Address.Coordinates, nil
}
