package model

import (
	"time"

	"github.com/naveenvaja/ridit-webapp/internal/geo"
)

// Item is one waste-collection listing. SellerName/SellerPhone and
// CollectorName/CollectorPhone are snapshots taken when the seller created the
// item and when a collector accepted it; they are not kept in sync with the
// users afterwards.
type Item struct {
	ID             string     `json:"id"`
	Category       string     `json:"category"`
	Quantity       string     `json:"quantity"`
	Description    string     `json:"description"`
	ImageURL       string     `json:"image_url,omitempty"`
	Address        Address    `json:"address"`
	PickupSlot     PickupSlot `json:"pickup_slot"`
	SellerID       string     `json:"seller_id"`
	SellerName     string     `json:"seller_name"`
	SellerPhone    string     `json:"seller_phone"`
	EstimatedPrice float64    `json:"estimated_price"`
	Status         string     `json:"status"`
	AcceptedBy     string     `json:"accepted_by,omitempty"`
	CollectorName  string     `json:"collector_name,omitempty"`
	CollectorPhone string     `json:"collector_phone,omitempty"`
	ActualWeight   *float64   `json:"actual_weight,omitempty"`
	FinalPrice     *float64   `json:"final_price,omitempty"`
	CollectedAt    *time.Time `json:"collected_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Address is where an item is picked up. Coordinates are captured when the
// item is created.
type Address struct {
	Street      string     `json:"street"`
	City        string     `json:"city"`
	ZipCode     string     `json:"zip_code"`
	Coordinates *geo.Point `json:"coordinates,omitempty"`
}

// PickupSlot is the seller's preferred pickup window.
type PickupSlot struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Item statuses.
const (
	ItemStatusPending   = "pending"
	ItemStatusAccepted  = "accepted"
	ItemStatusCollected = "collected"
	ItemStatusCancelled = "cancelled"
)

// ValidItemStatus reports whether status is a known item status.
func ValidItemStatus(status string) bool {
	switch status {
	case ItemStatusPending, ItemStatusAccepted, ItemStatusCollected, ItemStatusCancelled:
		return true
	}
	return false
}

// transitions lists the allowed item status changes.
var transitions = map[string][]string{
	ItemStatusPending:  {ItemStatusAccepted, ItemStatusCancelled},
	ItemStatusAccepted: {ItemStatusCollected},
}

// CanTransition reports whether an item may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Waste categories.
const (
	CategoryPlastic = "plastic"
	CategoryPaper   = "paper"
	CategoryMetal   = "metal"
	CategoryEwaste  = "ewaste"
)

// pricePerKg is the unit rate per category in currency units per kg.
var pricePerKg = map[string]float64{
	CategoryPlastic: 15,
	CategoryPaper:   10,
	CategoryMetal:   40,
	CategoryEwaste:  60,
}

// PricePerKg returns the unit rate for a category, 0 for unknown categories.
func PricePerKg(category string) float64 {
	return pricePerKg[category]
}

// ValidCategory reports whether a category has a unit rate.
func ValidCategory(category string) bool {
	_, ok := pricePerKg[category]
	return ok
}
