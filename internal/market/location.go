package market

import (
	"context"

	"github.com/naveenvaja/ridit-webapp/internal/model"
	"github.com/naveenvaja/ridit-webapp/internal/store"
)

// Search radius bounds for collectors, in km.
const (
	DefaultRadiusKm = 10.0
	MinRadiusKm     = 1.0
	MaxRadiusKm     = 50.0
)

func validateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return validationError("latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return validationError("longitude must be between -180 and 180")
	}
	return nil
}

// SetCollectorLocation stores a collector's position and search radius. A
// zero radius means DefaultRadiusKm.
func (s *Service) SetCollectorLocation(ctx context.Context, collectorID string, lat, lng, radiusKm float64) (*model.Location, error) {
	if err := validateCoordinates(lat, lng); err != nil {
		return nil, err
	}
	if radiusKm == 0 {
		radiusKm = DefaultRadiusKm
	}
	if radiusKm < MinRadiusKm || radiusKm > MaxRadiusKm {
		return nil, validationError("search_radius_km must be between %g and %g", MinRadiusKm, MaxRadiusKm)
	}

	collector, err := s.resolve(ctx, collectorID, ErrCollectorNotFound)
	if err != nil {
		return nil, err
	}
	if collector.Role != model.RoleCollector {
		return nil, ErrNotCollector
	}

	loc := model.Location{Latitude: lat, Longitude: lng, SearchRadiusKm: radiusKm}
	if err := store.SetUserLocation(ctx, s.db, collector.Key, loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// CollectorLocation returns a collector's stored location, or nil if it was
// never set.
func (s *Service) CollectorLocation(ctx context.Context, collectorID string) (*model.Location, error) {
	collector, err := s.resolve(ctx, collectorID, ErrCollectorNotFound)
	if err != nil {
		return nil, err
	}
	if collector.Role != model.RoleCollector {
		return nil, ErrNotCollector
	}
	return collector.Location, nil
}

// SetSellerLocation stores a seller's position and optional area name.
func (s *Service) SetSellerLocation(ctx context.Context, sellerID string, lat, lng float64, areaName string) (*model.Location, error) {
	if err := validateCoordinates(lat, lng); err != nil {
		return nil, err
	}

	seller, err := s.resolve(ctx, sellerID, ErrSellerNotFound)
	if err != nil {
		return nil, err
	}
	if seller.Role != model.RoleSeller {
		return nil, ErrNotSeller
	}

	loc := model.Location{Latitude: lat, Longitude: lng, AreaName: areaName}
	if err := store.SetUserLocation(ctx, s.db, seller.Key, loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// SellerLocation returns a seller's stored location, or nil if it was never
// set.
func (s *Service) SellerLocation(ctx context.Context, sellerID string) (*model.Location, error) {
	seller, err := s.resolve(ctx, sellerID, ErrSellerNotFound)
	if err != nil {
		return nil, err
	}
	return seller.Location, nil
}
