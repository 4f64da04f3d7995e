package service

import (
	"context"
	"sync"
	"time"

	"market-service/internal/models"
	"market-service/internal/reactive"
	"market-service/internal/util"

	"go.uber.org/zap"
)

// SnapshotSource provides the initial full fetch when a session starts.
type SnapshotSource interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetNotifications(ctx context.Context) ([]models.Notification, error)
}

// Subscription is an open change-feed subscription.
type Subscription interface {
	Close() error
}

// ChangeFeed delivers remote change events to a callback, in the order
// the transport produced them. Reconnection policy belongs to the feed
// implementation, not to the controller.
type ChangeFeed interface {
	Subscribe(fn func(*models.ChangeEvent)) (Subscription, error)
}

// SyncController bridges the session lifecycle and the change feed into
// reactive.Store mutations. It moves through three states: idle (no
// session), syncing (snapshot fetch in progress) and live (subscription
// open, events applied 1:1).
//
// Every teardown increments an epoch counter. The subscription callback
// captures the epoch it was started under, and events are applied only
// while that epoch is still current, so a stale, slow-to-cancel
// subscription cannot resurrect state after sign-out.
type SyncController struct {
	snapshots SnapshotSource
	feed      ChangeFeed
	store     *reactive.Store
	logger    *zap.Logger

	mu     sync.Mutex
	epoch  uint64
	live   bool
	userID string
	sub    Subscription
}

// NewSyncController creates a new sync controller
func NewSyncController(snapshots SnapshotSource, feed ChangeFeed, store *reactive.Store) *SyncController {
	return &SyncController{
		snapshots: snapshots,
		feed:      feed,
		store:     store,
		logger:    util.GetLogger(),
	}
}

// Start establishes sync for a session: fetch snapshots, bulk-load the
// store, then open the change-feed subscription. Calling Start again for
// the same user while live is a no-op; a different user triggers a full
// teardown first, so subscriptions for two identities never overlap.
//
// A failed snapshot fetch is reported as a SyncError in the return value
// but the controller still goes live: live updates without full history
// beat total failure.
func (c *SyncController) Start(ctx context.Context, session *models.Session) error {
	c.mu.Lock()
	if c.live && c.userID == session.User.ID {
		c.mu.Unlock()
		return nil
	}
	if c.live {
		c.teardownLocked()
	}
	c.epoch++
	epoch := c.epoch
	c.userID = session.User.ID
	c.mu.Unlock()

	var syncErr error
	start := time.Now()

	products, productsErr := c.snapshots.GetProducts(ctx)
	if productsErr != nil {
		util.SyncSnapshotFailedTotal.WithLabelValues(models.CollectionProducts).Inc()
		c.logger.Error("Product snapshot fetch failed", zap.Error(productsErr))
		syncErr = &models.SyncError{Collection: models.CollectionProducts, Err: productsErr}
	}

	notifications, notificationsErr := c.snapshots.GetNotifications(ctx)
	if notificationsErr != nil {
		util.SyncSnapshotFailedTotal.WithLabelValues(models.CollectionNotifications).Inc()
		c.logger.Error("Notification snapshot fetch failed", zap.Error(notificationsErr))
		if syncErr == nil {
			syncErr = &models.SyncError{Collection: models.CollectionNotifications, Err: notificationsErr}
		}
	}

	util.SyncSnapshotLatency.Observe(time.Since(start).Seconds())

	// The fetches ran unlocked, so a teardown may have happened in the
	// meantime. Bulk-load only while the captured epoch is still
	// current, under the same lock teardown takes, so a Stop during a
	// slow fetch can never be overwritten by the stale snapshot.
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return syncErr
	}
	if productsErr == nil {
		c.store.ReplaceProducts(products)
	}
	if notificationsErr == nil {
		c.store.ReplaceNotifications(notifications)
	}
	c.mu.Unlock()

	sub, err := c.feed.Subscribe(func(ev *models.ChangeEvent) {
		c.apply(epoch, ev)
	})
	if err != nil {
		c.logger.Error("Change-feed subscribe failed", zap.Error(err))
		return &models.SyncError{Collection: "feed", Err: err}
	}

	c.mu.Lock()
	if c.epoch != epoch {
		// Torn down while we were syncing; the new owner wins.
		c.mu.Unlock()
		_ = sub.Close()
		return syncErr
	}
	c.sub = sub
	c.live = true
	c.mu.Unlock()

	util.SessionsStartedTotal.Inc()
	c.logger.Info("Sync live",
		zap.String("user_id", session.User.ID),
		zap.Int("products", len(products)),
		zap.Int("notifications", len(notifications)))
	return syncErr
}

// Stop tears down the subscription and empties the store. Safe to call
// in any state, any number of times.
func (c *SyncController) Stop() {
	c.mu.Lock()
	wasLive := c.live
	c.teardownLocked()
	c.mu.Unlock()

	if wasLive {
		util.SessionsEndedTotal.Inc()
		c.logger.Info("Sync stopped")
	}
}

// teardownLocked severs the subscription and clears state. Incrementing
// the epoch invalidates every callback issued before this point.
func (c *SyncController) teardownLocked() {
	c.epoch++
	c.live = false
	c.userID = ""
	if c.sub != nil {
		_ = c.sub.Close()
		c.sub = nil
	}
	c.store.ReplaceProducts(nil)
	c.store.ClearNotifications()
}

// apply translates one change event into the matching store mutation.
// Events from a superseded epoch are dropped silently. The epoch alone
// gates delivery: a subscription only exists once its epoch is current,
// so events arriving between subscribe and the live flag are applied,
// not lost. The mutation happens under the controller lock so it cannot
// interleave with a concurrent teardown's store clear.
func (c *SyncController) apply(epoch uint64, ev *models.ChangeEvent) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		util.SyncEventsDroppedTotal.Inc()
		return
	}
	err := c.applyEvent(ev)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("Dropping malformed change event",
			zap.String("event_id", ev.EventID),
			zap.String("collection", ev.Collection),
			zap.String("op", ev.Op),
			zap.Error(err))
		return
	}
	util.SyncEventsAppliedTotal.WithLabelValues(ev.Collection, ev.Op).Inc()
}

// applyEvent is the pure event-to-mutation translation, kept separate
// from the epoch plumbing so it can be tested on its own.
func (c *SyncController) applyEvent(ev *models.ChangeEvent) error {
	switch ev.Collection {
	case models.CollectionProducts:
		switch ev.Op {
		case models.OpInsert:
			p, err := ev.Product()
			if err != nil || p == nil {
				return err
			}
			p.Category = models.NormalizeCategory(p.Category)
			return c.store.InsertProduct(*p)
		case models.OpUpdate:
			p, err := ev.Product()
			if err != nil || p == nil {
				return err
			}
			p.Category = models.NormalizeCategory(p.Category)
			return c.store.UpdateProduct(*p)
		case models.OpDelete:
			c.store.RemoveProduct(ev.RecordID)
		}

	case models.CollectionNotifications:
		switch ev.Op {
		case models.OpInsert:
			n, err := ev.Notification()
			if err != nil || n == nil {
				return err
			}
			c.store.AddNotification(*n)
		case models.OpUpdate:
			n, err := ev.Notification()
			if err != nil || n == nil {
				return err
			}
			if n.Read {
				c.store.MarkRead(n.ID)
			}
		}
	}
	return nil
}
