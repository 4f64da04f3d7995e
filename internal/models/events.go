package models

import (
	"encoding/json"
	"time"
)

// Change-feed collections
const (
	CollectionProducts      = "products"
	CollectionNotifications = "notifications"
)

// Change-feed operations
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// ChangeEvent is the envelope carried on the change-feed topic. One
// event describes one mutation of one record in one collection.
type ChangeEvent struct {
	EventID    string          `json:"event_id"`
	Collection string          `json:"collection"`
	Op         string          `json:"op"`
	RecordID   string          `json:"record_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Product decodes the payload as a Product. Only meaningful for
// CollectionProducts events; delete events may carry no payload.
func (e *ChangeEvent) Product() (*Product, error) {
	if len(e.Payload) == 0 {
		return nil, nil
	}
	var p Product
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Notification decodes the payload as a Notification.
func (e *ChangeEvent) Notification() (*Notification, error) {
	if len(e.Payload) == 0 {
		return nil, nil
	}
	var n Notification
	if err := json.Unmarshal(e.Payload, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
