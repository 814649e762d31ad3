package store

import (
	"context"
	"testing"

	"github.com/naveenvaja/ridit-webapp/internal/model"
)

func TestCreateAndGetItem(t *testing.T) {
	database := newTestStore(t)
	ctx := context.Background()

	item, err := CreateItem(ctx, database, &model.Item{
		Category: model.CategoryPlastic,
		Quantity: "5",
		SellerID: "seller-1",
		Status:   model.ItemStatusPending,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := GetItem(ctx, database, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got == nil {
		t.Fatal("expected item, got nil")
	}
	if got.Category != model.CategoryPlastic {
		t.Errorf("expected category 'plastic', got %q", got.Category)
	}
	if got.Status != model.ItemStatusPending {
		t.Errorf("expected status 'pending', got %q", got.Status)
	}
}

func TestGetItemWithoutIDField(t *testing.T) {
	database := newTestStore(t)
	ctx := context.Background()

	database.Set(ctx, "items/external", map[string]any{"category": "paper", "status": "pending"})

	got, _ := GetItem(ctx, database, "external")
	if got == nil || got.ID != "external" {
		t.Fatalf("expected id to fall back to key, got %+v", got)
	}
}

func TestListItemsFilter(t *testing.T) {
	database := newTestStore(t)
	ctx := context.Background()

	CreateItem(ctx, database, &model.Item{Category: model.CategoryPlastic, SellerID: "s1", Status: model.ItemStatusPending})
	CreateItem(ctx, database, &model.Item{Category: model.CategoryPaper, SellerID: "s1", Status: model.ItemStatusPending})
	CreateItem(ctx, database, &model.Item{Category: model.CategoryPlastic, SellerID: "s2", Status: model.ItemStatusAccepted, AcceptedBy: "c1"})

	all, _ := ListItems(ctx, database, ItemFilter{})
	if len(all) != 3 {
		t.Errorf("expected 3 items, got %d", len(all))
	}

	pending, _ := ListItems(ctx, database, ItemFilter{Status: model.ItemStatusPending})
	if len(pending) != 2 {
		t.Errorf("expected 2 pending items, got %d", len(pending))
	}

	plastic, _ := ListItems(ctx, database, ItemFilter{Status: model.ItemStatusPending, Category: model.CategoryPlastic})
	if len(plastic) != 1 {
		t.Errorf("expected 1 pending plastic item, got %d", len(plastic))
	}

	bySeller, _ := ListItems(ctx, database, ItemFilter{SellerID: "s1"})
	if len(bySeller) != 2 {
		t.Errorf("expected 2 items for s1, got %d", len(bySeller))
	}

	accepted, _ := ListItems(ctx, database, ItemFilter{AcceptedBy: "c1"})
	if len(accepted) != 1 {
		t.Errorf("expected 1 item accepted by c1, got %d", len(accepted))
	}
}

func TestTransitionItem(t *testing.T) {
	database := newTestStore(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, &model.Item{Category: model.CategoryMetal, Status: model.ItemStatusPending})

	ok, err := TransitionItem(ctx, database, item.ID, model.ItemStatusPending, model.ItemStatusAccepted, map[string]any{"accepted_by": "c1"})
	if err != nil {
		t.Fatalf("TransitionItem: %v", err)
	}
	if !ok {
		t.Fatal("expected transition to succeed")
	}

	// The item is no longer pending.
	ok, _ = TransitionItem(ctx, database, item.ID, model.ItemStatusPending, model.ItemStatusAccepted, map[string]any{"accepted_by": "c2"})
	if ok {
		t.Error("expected second transition from pending to fail")
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.Status != model.ItemStatusAccepted || got.AcceptedBy != "c1" {
		t.Errorf("unexpected item after transitions: status=%q accepted_by=%q", got.Status, got.AcceptedBy)
	}

	if _, err := TransitionItem(ctx, database, item.ID, model.ItemStatusAccepted, model.ItemStatusPending, nil); err == nil {
		t.Error("expected error for disallowed transition")
	}
}

func TestDeleteItem(t *testing.T) {
	database := newTestStore(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, &model.Item{Category: model.CategoryPaper, Status: model.ItemStatusPending})
	if err := DeleteItem(ctx, database, item.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got != nil {
		t.Error("expected deleted item to be gone")
	}
}

func TestListItemsExternalRecords(t *testing.T) {
	database := newTestStore(t)
	ctx := context.Background()

	CreateItem(ctx, database, &model.Item{Category: model.CategoryPlastic, Status: model.ItemStatusPending})
	database.Set(ctx, "items/zoneless", map[string]any{
		"category":   "paper",
		"status":     "pending",
		"created_at": "2025-03-01T12:00:00.123456",
		"updated_at": "2025-03-01T12:00:00.123456",
	})
	database.Set(ctx, "items/broken", map[string]any{"category": "paper", "created_at": "yesterday"})

	items, err := ListItems(ctx, database, ItemFilter{})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 decodable items, got %d", len(items))
	}

	var zoneless *model.Item
	for i := range items {
		if items[i].ID == "zoneless" {
			zoneless = &items[i]
		}
	}
	if zoneless == nil {
		t.Fatal("expected item without zone in its timestamps to be listed")
	}
	if zoneless.CreatedAt.Year() != 2025 {
		t.Errorf("expected created_at decoded, got %v", zoneless.CreatedAt)
	}
}
