package worker

import (
	"context"
	"log"
	"sync"

	"market-service/internal/broker"
	"market-service/internal/models"
	"market-service/internal/service"
)

// Dispatcher fans decoded change events out to in-process subscribers
// in delivery order. It is the ChangeFeed the sync controller (and the
// websocket hub) subscribe to.
type Dispatcher struct {
	mu     sync.Mutex
	subs   map[uint64]func(*models.ChangeEvent)
	nextID uint64
}

// NewDispatcher creates a new dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[uint64]func(*models.ChangeEvent))}
}

// Subscribe registers a callback for every dispatched event.
func (d *Dispatcher) Subscribe(fn func(*models.ChangeEvent)) (service.Subscription, error) {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = fn
	d.mu.Unlock()

	return &dispatcherSub{dispatcher: d, id: id}, nil
}

// Dispatch delivers one event to all current subscribers.
func (d *Dispatcher) Dispatch(ev *models.ChangeEvent) {
	d.mu.Lock()
	fns := make([]func(*models.ChangeEvent), 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

type dispatcherSub struct {
	dispatcher *Dispatcher
	id         uint64
	once       sync.Once
}

func (s *dispatcherSub) Close() error {
	s.once.Do(func() {
		s.dispatcher.mu.Lock()
		delete(s.dispatcher.subs, s.id)
		s.dispatcher.mu.Unlock()
	})
	return nil
}

// ChangeFeedWorker consumes the Kafka change topic and hands decoded
// events to the dispatcher.
type ChangeFeedWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.ChangeEventHandler
}

// NewChangeFeedWorker creates a new change-feed worker
func NewChangeFeedWorker(consumer *broker.Consumer, dispatcher *Dispatcher) *ChangeFeedWorker {
	eventHandler := broker.NewChangeEventHandler()
	eventHandler.OnChange(func(_ context.Context, ev *models.ChangeEvent) {
		dispatcher.Dispatch(ev)
	})

	return &ChangeFeedWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *ChangeFeedWorker) Start(ctx context.Context) error {
	log.Println("Starting change-feed worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ChangeFeedWorker) Stop() error {
	log.Println("Stopping change-feed worker...")
	return w.consumer.Close()
}
