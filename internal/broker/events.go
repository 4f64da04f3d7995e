package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"market-service/internal/models"
	"market-service/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// ChangeFeedPublisher publishes record mutations onto the change feed.
// Events are keyed by record id so all changes to one record land on
// one partition in order.
type ChangeFeedPublisher struct {
	producer *Producer
}

// NewChangeFeedPublisher creates a new change-feed publisher
func NewChangeFeedPublisher(producer *Producer) *ChangeFeedPublisher {
	return &ChangeFeedPublisher{producer: producer}
}

func (cp *ChangeFeedPublisher) publish(ctx context.Context, collection, op, recordID string, payload interface{}) error {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		raw = data
	}

	event := &models.ChangeEvent{
		EventID:    uuid.New().String(),
		Collection: collection,
		Op:         op,
		RecordID:   recordID,
		Timestamp:  time.Now(),
		Payload:    raw,
	}

	if err := cp.producer.PublishEvent(ctx, recordID, event); err != nil {
		return err
	}

	util.ChangeEventsPublishedTotal.WithLabelValues(collection, op).Inc()
	return nil
}

// PublishProductInserted publishes an insert event for a product
func (cp *ChangeFeedPublisher) PublishProductInserted(ctx context.Context, p *models.Product) error {
	return cp.publish(ctx, models.CollectionProducts, models.OpInsert, p.ID, p)
}

// PublishProductUpdated publishes an update event for a product
func (cp *ChangeFeedPublisher) PublishProductUpdated(ctx context.Context, p *models.Product) error {
	return cp.publish(ctx, models.CollectionProducts, models.OpUpdate, p.ID, p)
}

// PublishProductDeleted publishes a delete event for a product
func (cp *ChangeFeedPublisher) PublishProductDeleted(ctx context.Context, id string) error {
	return cp.publish(ctx, models.CollectionProducts, models.OpDelete, id, nil)
}

// PublishNotificationInserted publishes an insert event for a notification
func (cp *ChangeFeedPublisher) PublishNotificationInserted(ctx context.Context, n *models.Notification) error {
	return cp.publish(ctx, models.CollectionNotifications, models.OpInsert, n.ID, n)
}

// PublishNotificationUpdated publishes an update event for a notification
func (cp *ChangeFeedPublisher) PublishNotificationUpdated(ctx context.Context, n *models.Notification) error {
	return cp.publish(ctx, models.CollectionNotifications, models.OpUpdate, n.ID, n)
}

// ChangeEventHandler decodes change-feed messages and hands the events
// to registered callbacks.
type ChangeEventHandler struct {
	onChange []func(context.Context, *models.ChangeEvent)
}

// NewChangeEventHandler creates a new change event handler
func NewChangeEventHandler() *ChangeEventHandler {
	return &ChangeEventHandler{}
}

// OnChange registers a callback invoked for every decoded change event.
func (ch *ChangeEventHandler) OnChange(fn func(context.Context, *models.ChangeEvent)) {
	ch.onChange = append(ch.onChange, fn)
}

// HandleMessage decodes a message and fans it out to the callbacks
func (ch *ChangeEventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var event models.ChangeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal change event: %w", err)
	}

	switch event.Op {
	case models.OpInsert, models.OpUpdate, models.OpDelete:
	default:
		return fmt.Errorf("unknown change op: %s", event.Op)
	}

	for _, fn := range ch.onChange {
		fn(ctx, &event)
	}
	return nil
}
