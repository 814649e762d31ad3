package market

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/naveenvaja/ridit-webapp/internal/events"
	"github.com/naveenvaja/ridit-webapp/internal/model"
	"github.com/naveenvaja/ridit-webapp/internal/store"
)

// MinDescriptionLength is the shortest accepted item description.
const MinDescriptionLength = 10

// ItemInput is what a seller supplies to list an item.
type ItemInput struct {
	Category    string           `json:"category"`
	Quantity    string           `json:"quantity"`
	Description string           `json:"description"`
	ImageURL    string           `json:"image_url"`
	Address     model.Address    `json:"address"`
	PickupSlot  model.PickupSlot `json:"pickup_slot"`
}

// validate checks the input and returns the parsed quantity.
func (in *ItemInput) validate() (float64, error) {
	if !model.ValidCategory(in.Category) {
		return 0, validationError("invalid category. Must be one of: plastic, paper, metal, ewaste")
	}
	qty, err := strconv.ParseFloat(strings.TrimSpace(in.Quantity), 64)
	if err != nil || qty < 0 {
		return 0, validationError("quantity must be a non-negative number")
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.Description)) < MinDescriptionLength {
		return 0, validationError("description must be at least %d characters", MinDescriptionLength)
	}
	if in.Address.Coordinates == nil {
		return 0, validationError("address coordinates are required")
	}
	if err := validateCoordinates(in.Address.Coordinates.Lat, in.Address.Coordinates.Lng); err != nil {
		return 0, err
	}
	if _, err := time.Parse(time.DateOnly, in.PickupSlot.Date); err != nil {
		return 0, validationError("pickup date must be YYYY-MM-DD")
	}
	start, err := time.Parse("15:04", in.PickupSlot.StartTime)
	if err != nil {
		return 0, validationError("pickup start_time must be HH:MM")
	}
	end, err := time.Parse("15:04", in.PickupSlot.EndTime)
	if err != nil {
		return 0, validationError("pickup end_time must be HH:MM")
	}
	if !end.After(start) {
		return 0, validationError("pickup end_time must be after start_time")
	}
	return qty, nil
}

// CreatedItem is the outcome of CreateItem.
type CreatedItem struct {
	ID             string  `json:"id"`
	EstimatedPrice float64 `json:"estimated_price"`
	Status         string  `json:"status"`
	Note           string  `json:"note"`
}

// CreateItem lists a new pending item for a seller. The estimated price is
// the category's unit rate times the quantity; the seller's name and phone
// are copied onto the item.
func (s *Service) CreateItem(ctx context.Context, sellerID string, in ItemInput) (*CreatedItem, error) {
	qty, err := in.validate()
	if err != nil {
		return nil, err
	}

	seller, err := s.resolve(ctx, sellerID, ErrSellerNotFound)
	if err != nil {
		return nil, err
	}

	item, err := store.CreateItem(ctx, s.db, &model.Item{
		Category:       in.Category,
		Quantity:       strings.TrimSpace(in.Quantity),
		Description:    strings.TrimSpace(in.Description),
		ImageURL:       in.ImageURL,
		Address:        in.Address,
		PickupSlot:     in.PickupSlot,
		SellerID:       seller.Key,
		SellerName:     seller.Name,
		SellerPhone:    seller.Phone,
		EstimatedPrice: model.PricePerKg(in.Category) * qty,
		Status:         model.ItemStatusPending,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ItemTransitions.WithLabelValues(model.ItemStatusPending).Inc()
	slog.Info("item created", "item", item.ID, "seller", seller.Key, "category", item.Category)
	s.publish(ctx, events.SubjectItemCreated, item, item.EstimatedPrice)

	return &CreatedItem{
		ID:             item.ID,
		EstimatedPrice: item.EstimatedPrice,
		Status:         item.Status,
		Note:           "Final price based on actual weight at pickup",
	}, nil
}

// ItemList is a list of items with its length.
type ItemList struct {
	Items      []model.Item `json:"items"`
	TotalCount int          `json:"total_count"`
}

// ListSellerItems returns a seller's items, optionally only those in status.
func (s *Service) ListSellerItems(ctx context.Context, sellerID, status string) (*ItemList, error) {
	if status != "" && !model.ValidItemStatus(status) {
		return nil, validationError("invalid status %q", status)
	}

	seller, err := s.resolve(ctx, sellerID, ErrSellerNotFound)
	if err != nil {
		return nil, err
	}

	items, err := store.ListItems(ctx, s.db, store.ItemFilter{Status: status})
	if err != nil {
		return nil, err
	}

	list := &ItemList{Items: []model.Item{}}
	for _, item := range items {
		if refersTo(item.SellerID, seller) {
			list.Items = append(list.Items, item)
		}
	}
	list.TotalCount = len(list.Items)
	return list, nil
}

// ListAllItems returns every item.
func (s *Service) ListAllItems(ctx context.Context) (*ItemList, error) {
	items, err := store.ListItems(ctx, s.db, store.ItemFilter{})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Item{}
	}
	return &ItemList{Items: items, TotalCount: len(items)}, nil
}

// ItemStatusView is the status summary of one item.
type ItemStatusView struct {
	ItemID         string     `json:"item_id"`
	Status         string     `json:"status"`
	CollectorName  string     `json:"collector_name,omitempty"`
	CollectorPhone string     `json:"collector_phone,omitempty"`
	EstimatedPrice float64    `json:"estimated_price"`
	FinalPrice     *float64   `json:"final_price,omitempty"`
	CollectedAt    *time.Time `json:"collected_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ItemStatus returns the status summary of an item to the seller who listed
// it or an admin.
func (s *Service) ItemStatus(ctx context.Context, itemID string, actor Actor) (*ItemStatusView, error) {
	item, err := s.ownedItem(ctx, itemID, actor)
	if err != nil {
		return nil, err
	}
	return &ItemStatusView{
		ItemID:         item.ID,
		Status:         item.Status,
		CollectorName:  item.CollectorName,
		CollectorPhone: item.CollectorPhone,
		EstimatedPrice: item.EstimatedPrice,
		FinalPrice:     item.FinalPrice,
		CollectedAt:    item.CollectedAt,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}, nil
}

// CancelItem withdraws a pending item. Only the seller who listed it or an
// admin may cancel.
func (s *Service) CancelItem(ctx context.Context, itemID string, actor Actor) error {
	item, err := s.ownedItem(ctx, itemID, actor)
	if err != nil {
		return err
	}
	if item.Status != model.ItemStatusPending {
		return ErrCannotCancel
	}

	ok, err := store.TransitionItem(ctx, s.db, item.ID, model.ItemStatusPending, model.ItemStatusCancelled, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCannotCancel
	}
	s.metrics.ItemTransitions.WithLabelValues(model.ItemStatusCancelled).Inc()
	slog.Info("item cancelled", "item", item.ID, "by", actor.Key)

	item.Status = model.ItemStatusCancelled
	s.publish(ctx, events.SubjectItemCancelled, item, 0)
	return nil
}

// DeleteItem removes an item permanently. Only the seller who listed it or
// an admin may delete.
func (s *Service) DeleteItem(ctx context.Context, itemID string, actor Actor) error {
	item, err := s.ownedItem(ctx, itemID, actor)
	if err != nil {
		return err
	}
	if err := store.DeleteItem(ctx, s.db, item.ID); err != nil {
		return err
	}
	slog.Info("item deleted", "item", item.ID, "by", actor.Key)
	return nil
}

// WeightUpdate is the outcome of UpdateItemWeight.
type WeightUpdate struct {
	ItemID       string   `json:"item_id"`
	ActualWeight float64  `json:"actual_weight"`
	FinalPrice   *float64 `json:"final_price,omitempty"`
}

// UpdateItemWeight corrects the recorded weight of an item in any status.
// Collected items have their final price recomputed from the new weight.
func (s *Service) UpdateItemWeight(ctx context.Context, itemID string, weight float64) (*WeightUpdate, error) {
	if weight <= 0 {
		return nil, validationError("actual_weight must be greater than 0")
	}

	item, err := s.item(ctx, itemID)
	if err != nil {
		return nil, err
	}

	update := &WeightUpdate{ItemID: item.ID, ActualWeight: weight}
	fields := map[string]any{"actual_weight": weight}
	if item.Status == model.ItemStatusCollected {
		price := FinalPrice(item.Category, weight)
		fields["final_price"] = price
		update.FinalPrice = &price
	}

	if err := store.UpdateItem(ctx, s.db, item.ID, fields); err != nil {
		return nil, err
	}
	slog.Info("item weight updated", "item", item.ID, "weight", weight)
	return update, nil
}

func (s *Service) item(ctx context.Context, itemID string) (*model.Item, error) {
	item, err := store.GetItem(ctx, s.db, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	return item, nil
}

func (s *Service) ownedItem(ctx context.Context, itemID string, actor Actor) (*model.Item, error) {
	item, err := s.item(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || item.SellerID == actor.Key {
		return item, nil
	}
	// Items listed before identifiers were canonicalized may carry another
	// identifier of the seller.
	seller, err := store.ResolveUser(ctx, s.db, item.SellerID)
	if err != nil {
		return nil, err
	}
	if seller != nil && seller.Key == actor.Key {
		return item, nil
	}
	return nil, ErrNotItemOwner
}
