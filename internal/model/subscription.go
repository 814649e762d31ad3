package model

import (
	"fmt"
	"time"
)

// Subscription gates a collector's access to the item listing. ExpiryDate
// is an ISO-8601 timestamp kept as text so conditional writes can compare
// the stored value exactly.
type Subscription struct {
	Status      string `json:"status"`
	PlanType    string `json:"plan_type"`
	ExpiryDate  string `json:"expiry_date,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	CancelledAt string `json:"cancelled_at,omitempty"`
}

// Subscription statuses.
const (
	SubscriptionActive   = "active"
	SubscriptionInactive = "inactive"
)

// PlanNone marks a collector without a plan.
const PlanNone = "none"

// Expired reports whether the subscription has an expiry strictly before now.
// A subscription without an expiry never expires.
func (s *Subscription) Expired(now time.Time) (bool, error) {
	if s.ExpiryDate == "" {
		return false, nil
	}
	expiry, err := ParseTimestamp(s.ExpiryDate)
	if err != nil {
		return false, fmt.Errorf("parsing expiry date: %w", err)
	}
	return expiry.Before(now), nil
}

// timestampLayouts are tried in order by ParseTimestamp. Timestamps without a
// zone are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// FormatTimestamp renders t the way it is stored.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses an ISO-8601 timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
