package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/naveenvaja/ridit-webapp/internal/kv"
	"github.com/naveenvaja/ridit-webapp/internal/model"
)

func itemPath(id string) string { return kv.Join(ItemsCollection, id) }

// ItemFilter narrows ListItems. Empty fields match everything.
type ItemFilter struct {
	Status     string
	Category   string
	SellerID   string
	AcceptedBy string
}

func (f ItemFilter) match(item *model.Item) bool {
	return (f.Status == "" || item.Status == f.Status) &&
		(f.Category == "" || item.Category == f.Category) &&
		(f.SellerID == "" || item.SellerID == f.SellerID) &&
		(f.AcceptedBy == "" || item.AcceptedBy == f.AcceptedBy)
}

// CreateItem stores a new item under a generated, time-ordered id.
func CreateItem(ctx context.Context, db kv.Store, item *model.Item) (*model.Item, error) {
	id, err := kv.NewKey()
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	now := time.Now().UTC()
	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now

	if err := db.Set(ctx, itemPath(id), item); err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}
	return item, nil
}

// GetItem returns an item by ID.
func GetItem(ctx context.Context, db kv.Store, id string) (*model.Item, error) {
	if id == "" {
		return nil, nil
	}
	item := &model.Item{}
	found, err := db.Get(ctx, itemPath(id), item)
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	if !found {
		return nil, nil
	}
	// Items pushed by other writers may lack the id field.
	if item.ID == "" {
		item.ID = id
	}
	return item, nil
}

// ListItems returns the items matching filter in store order. Records that
// do not decode as items are logged and skipped.
func ListItems(ctx context.Context, db kv.Store, filter ItemFilter) ([]model.Item, error) {
	entries, err := db.List(ctx, ItemsCollection)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	var items []model.Item
	for _, e := range entries {
		var item model.Item
		if err := e.Decode(&item); err != nil {
			slog.Warn("skipping undecodable item", "key", e.Key, "error", err)
			continue
		}
		if item.ID == "" {
			item.ID = e.Key
		}
		if filter.match(&item) {
			items = append(items, item)
		}
	}
	return items, nil
}

// UpdateItem merges fields into an item and stamps updated_at.
func UpdateItem(ctx context.Context, db kv.Store, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	if err := db.Update(ctx, itemPath(id), fields); err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return nil
}

// TransitionItem moves an item from one status to another in a single
// conditional write, merging fields alongside. It reports false when the
// item is no longer in the from status. Transitions the state machine does
// not allow are an error.
func TransitionItem(ctx context.Context, db kv.Store, id, from, to string, fields map[string]any) (bool, error) {
	if !model.CanTransition(from, to) {
		return false, fmt.Errorf("transition %s -> %s not allowed", from, to)
	}

	if fields == nil {
		fields = map[string]any{}
	}
	fields["status"] = to
	fields["updated_at"] = time.Now().UTC()

	ok, err := db.CompareAndUpdate(ctx, itemPath(id), "status", from, fields)
	if err != nil {
		return false, fmt.Errorf("transitioning item: %w", err)
	}
	return ok, nil
}

// DeleteItem removes an item permanently.
func DeleteItem(ctx context.Context, db kv.Store, id string) error {
	if err := db.Delete(ctx, itemPath(id)); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}
