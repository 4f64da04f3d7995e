// Package reactive holds the authoritative client-side view of products
// and notifications and notifies observers synchronously on every change.
package reactive

import (
	"sync"

	"market-service/internal/models"
)

// Store is an observable container for the current product and
// notification state. It is the single shared mutable resource of the
// sync layer; all mutation goes through its methods and every mutation
// notifies all registered observers before the mutating call returns.
//
// Observers run outside the internal lock with the mutation already
// applied, so they may read the store freely. An observer registered
// during a notification is not invoked for that same notification.
type Store struct {
	mu            sync.Mutex
	products      []models.Product
	notifications []models.Notification
	observers     map[uint64]func()
	nextObserver  uint64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		observers: make(map[uint64]func()),
	}
}

// Subscribe registers an observer invoked after every mutation. The
// returned function removes the observer; calling it twice is safe.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// notifyLocked snapshots the observer set and releases the lock before
// invoking anyone, so observers can call back into the store.
func (s *Store) notifyLocked() {
	fns := make([]func(), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Products returns a copy of the current product snapshot, newest first.
func (s *Store) Products() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Product, len(s.products))
	copy(out, s.products)
	return out
}

// ReplaceProducts swaps in a full snapshot, typically after the initial
// bulk fetch. A nil list is treated as empty.
func (s *Store) ReplaceProducts(list []models.Product) {
	s.mu.Lock()
	s.products = make([]models.Product, len(list))
	copy(s.products, list)
	s.notifyLocked()
}

// InsertProduct prepends p unless an entry with the same id already
// exists, in which case the call is a no-op. This id-dedup is the single
// point that absorbs the optimistic-insert vs change-feed-echo race: the
// first arrival wins its position, the second disappears.
func (s *Store) InsertProduct(p models.Product) error {
	if err := models.ValidateProduct(&p); err != nil {
		return err
	}

	s.mu.Lock()
	for i := range s.products {
		if s.products[i].ID == p.ID {
			s.mu.Unlock()
			return nil
		}
	}
	s.products = append([]models.Product{p}, s.products...)
	s.notifyLocked()
	return nil
}

// UpdateProduct replaces the entry with the same id in place. No-op when
// the id is absent.
func (s *Store) UpdateProduct(p models.Product) error {
	if err := models.ValidateProduct(&p); err != nil {
		return err
	}

	s.mu.Lock()
	for i := range s.products {
		if s.products[i].ID == p.ID {
			s.products[i] = p
			s.notifyLocked()
			return nil
		}
	}
	s.mu.Unlock()
	return nil
}

// RemoveProduct deletes the entry with the given id. No-op when absent.
func (s *Store) RemoveProduct(id string) {
	s.mu.Lock()
	for i := range s.products {
		if s.products[i].ID == id {
			s.products = append(s.products[:i], s.products[i+1:]...)
			s.notifyLocked()
			return
		}
	}
	s.mu.Unlock()
}

// Notifications returns a copy of the current notifications, newest first.
func (s *Store) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// ReplaceNotifications swaps in a full snapshot. Nil treated as empty.
func (s *Store) ReplaceNotifications(list []models.Notification) {
	s.mu.Lock()
	s.notifications = make([]models.Notification, len(list))
	copy(s.notifications, list)
	s.notifyLocked()
}

// AddNotification prepends n, deduplicating by id.
func (s *Store) AddNotification(n models.Notification) {
	s.mu.Lock()
	for i := range s.notifications {
		if s.notifications[i].ID == n.ID {
			s.mu.Unlock()
			return
		}
	}
	s.notifications = append([]models.Notification{n}, s.notifications...)
	s.notifyLocked()
}

// ClearNotifications empties the notification list.
func (s *Store) ClearNotifications() {
	s.mu.Lock()
	s.notifications = nil
	s.notifyLocked()
}

// MarkRead sets read=true on the matching notification. No-op if absent.
func (s *Store) MarkRead(id string) {
	s.mu.Lock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].Read = true
			s.notifyLocked()
			return
		}
	}
	s.mu.Unlock()
}

// UnreadCount recomputes the number of unread notifications on every
// call rather than caching it.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for i := range s.notifications {
		if !s.notifications[i].Read {
			count++
		}
	}
	return count
}
