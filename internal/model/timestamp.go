package model

import (
	"encoding/json"
	"time"
)

// storedTime decodes any layout ParseTimestamp accepts, so records written
// by other clients without a zone still load. Null and "" decode as zero.
type storedTime time.Time

func (t *storedTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = storedTime(parsed)
	return nil
}

// UnmarshalJSON decodes a user, accepting timestamps without a zone.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	aux := struct {
		*plain
		CreatedAt storedTime `json:"created_at"`
		UpdatedAt storedTime `json:"updated_at"`
	}{plain: (*plain)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	u.CreatedAt = time.Time(aux.CreatedAt)
	u.UpdatedAt = time.Time(aux.UpdatedAt)
	return nil
}

// UnmarshalJSON decodes an item, accepting timestamps without a zone.
func (i *Item) UnmarshalJSON(data []byte) error {
	type plain Item
	aux := struct {
		*plain
		CollectedAt *storedTime `json:"collected_at"`
		CreatedAt   storedTime  `json:"created_at"`
		UpdatedAt   storedTime  `json:"updated_at"`
	}{plain: (*plain)(i)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.CollectedAt != nil && !time.Time(*aux.CollectedAt).IsZero() {
		collected := time.Time(*aux.CollectedAt)
		i.CollectedAt = &collected
	}
	i.CreatedAt = time.Time(aux.CreatedAt)
	i.UpdatedAt = time.Time(aux.UpdatedAt)
	return nil
}
