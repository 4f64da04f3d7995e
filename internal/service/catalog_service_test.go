package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"market-service/internal/models"
	"market-service/internal/reactive"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWriter plays the database: it assigns ids and timestamps the way
// INSERT ... RETURNING does, and counts calls so tests can assert that
// failed preconditions never reach it.
type fakeWriter struct {
	nextID      int
	createCalls int
	createErr   error
	notifErr    error
	products    map[string]*models.Product
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{products: make(map[string]*models.Product)}
}

func (f *fakeWriter) CreateProduct(ctx context.Context, p *models.Product) error {
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	p.ID = fmt.Sprintf("srv-%d", f.nextID)
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeWriter) UpdateProduct(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = time.Now()
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeWriter) DeleteProduct(ctx context.Context, id string) error {
	delete(f.products, id)
	return nil
}

func (f *fakeWriter) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product not found: %s", id)
	}
	return p, nil
}

func (f *fakeWriter) CreateNotification(ctx context.Context, n *models.Notification) error {
	if f.notifErr != nil {
		return f.notifErr
	}
	f.nextID++
	n.ID = fmt.Sprintf("srv-n-%d", f.nextID)
	n.CreatedAt = time.Now()
	return nil
}

func (f *fakeWriter) MarkNotificationRead(ctx context.Context, id string) error { return nil }
func (f *fakeWriter) ClearNotifications(ctx context.Context) error              { return nil }

type fakePublisher struct {
	inserted      []string
	notifications []string
}

func (f *fakePublisher) PublishProductInserted(ctx context.Context, p *models.Product) error {
	f.inserted = append(f.inserted, p.ID)
	return nil
}
func (f *fakePublisher) PublishProductUpdated(ctx context.Context, p *models.Product) error {
	return nil
}
func (f *fakePublisher) PublishProductDeleted(ctx context.Context, id string) error { return nil }
func (f *fakePublisher) PublishNotificationInserted(ctx context.Context, n *models.Notification) error {
	f.notifications = append(f.notifications, n.ID)
	return nil
}
func (f *fakePublisher) PublishNotificationUpdated(ctx context.Context, n *models.Notification) error {
	return nil
}

func testIdentity() *models.Identity {
	return &models.Identity{
		User:    models.User{ID: "farmer-1", Email: "ayu@farm.test", Role: models.RoleFarmer},
		Profile: models.Profile{UserID: "farmer-1", Name: "Ayu"},
	}
}

func testDraft() *models.ProductDraft {
	return &models.ProductDraft{
		Name:     "Tomatoes",
		Category: models.CategoryVegetables,
		Price:    4.5,
		Unit:     "kg",
		Quantity: 20,
	}
}

func TestAddProductRequiresIdentity(t *testing.T) {
	writer := newFakeWriter()
	view := reactive.New()
	cs := NewCatalogService(writer, &fakePublisher{}, view)

	product, err := cs.AddProduct(context.Background(), testDraft(), nil)

	assert.Nil(t, product)
	assert.ErrorIs(t, err, models.ErrAuthRequired)
	// The precondition fails before any remote call.
	assert.Equal(t, 0, writer.createCalls)
	assert.Empty(t, view.Products())
}

func TestAddProductInsertsOptimistically(t *testing.T) {
	writer := newFakeWriter()
	publisher := &fakePublisher{}
	view := reactive.New()
	cs := NewCatalogService(writer, publisher, view)

	product, err := cs.AddProduct(context.Background(), testDraft(), testIdentity())
	require.NoError(t, err)
	require.NotNil(t, product)

	assert.Equal(t, "srv-1", product.ID)
	assert.Equal(t, "farmer-1", product.FarmerID)
	assert.Equal(t, "Ayu", product.FarmerName)
	assert.False(t, product.CreatedAt.IsZero())

	products := view.Products()
	require.Len(t, products, 1)
	assert.Equal(t, product.ID, products[0].ID)

	assert.Equal(t, []string{product.ID}, publisher.inserted)

	notifications := view.Notifications()
	require.Len(t, notifications, 1)
	assert.Equal(t, "New product added: Tomatoes", notifications[0].Message)
	assert.Equal(t, models.NotificationSuccess, notifications[0].Type)
}

func TestOptimisticInsertConvergesWithEcho(t *testing.T) {
	writer := newFakeWriter()
	view := reactive.New()
	cs := NewCatalogService(writer, &fakePublisher{}, view)

	feed := &fakeFeed{}
	controller := NewSyncController(&fakeSnapshots{}, feed, view)
	require.NoError(t, controller.Start(context.Background(), testSession("farmer-1")))

	product, err := cs.AddProduct(context.Background(), testDraft(), testIdentity())
	require.NoError(t, err)

	// The change feed echoes the same creation moments later.
	feed.deliver(insertEvent(t, *product))

	count := 0
	for _, p := range view.Products() {
		if p.ID == product.ID {
			count++
			assert.Equal(t, product.Name, p.Name)
		}
	}
	assert.Equal(t, 1, count)
}

func TestAddProductNormalizesUnknownCategory(t *testing.T) {
	writer := newFakeWriter()
	view := reactive.New()
	cs := NewCatalogService(writer, &fakePublisher{}, view)

	draft := testDraft()
	draft.Category = "xyz123"

	product, err := cs.AddProduct(context.Background(), draft, testIdentity())
	require.NoError(t, err)
	assert.Equal(t, models.CategoryOther, product.Category)
}

func TestAddProductValidation(t *testing.T) {
	writer := newFakeWriter()
	view := reactive.New()
	cs := NewCatalogService(writer, &fakePublisher{}, view)

	draft := testDraft()
	draft.Price = -1
	draft.Quantity = -2

	product, err := cs.AddProduct(context.Background(), draft, testIdentity())
	assert.Nil(t, product)

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.ElementsMatch(t, []string{"price", "quantity"}, validation.Fields)
	assert.Equal(t, 0, writer.createCalls)
}

func TestAddProductDefaultsPlaceholderImage(t *testing.T) {
	writer := newFakeWriter()
	cs := NewCatalogService(writer, &fakePublisher{}, reactive.New())

	product, err := cs.AddProduct(context.Background(), testDraft(), testIdentity())
	require.NoError(t, err)
	assert.Equal(t, []string{models.PlaceholderImage}, []string(product.Images))
}

func TestAddProductRemoteFailureLeavesStoreUntouched(t *testing.T) {
	writer := newFakeWriter()
	writer.createErr = errors.New("connection refused")
	view := reactive.New()
	cs := NewCatalogService(writer, &fakePublisher{}, view)

	product, err := cs.AddProduct(context.Background(), testDraft(), testIdentity())
	assert.Nil(t, product)

	var writeFailed *models.WriteFailedError
	require.ErrorAs(t, err, &writeFailed)
	assert.Empty(t, view.Products())
	assert.Empty(t, view.Notifications())
}

func TestUnpersistedNotificationStaysOffTheFeed(t *testing.T) {
	writer := newFakeWriter()
	writer.notifErr = errors.New("notifications table unavailable")
	publisher := &fakePublisher{}
	view := reactive.New()
	cs := NewCatalogService(writer, publisher, view)

	product, err := cs.AddProduct(context.Background(), testDraft(), testIdentity())
	require.NoError(t, err)

	// The listing itself still publishes and the notification is still
	// surfaced locally, but nothing row-less goes onto the feed.
	assert.Equal(t, []string{product.ID}, publisher.inserted)
	assert.Empty(t, publisher.notifications)

	notifications := view.Notifications()
	require.Len(t, notifications, 1)
	assert.NotEmpty(t, notifications[0].ID)
}

func TestFarmerNameFallsBackToEmailLocalPart(t *testing.T) {
	identity := testIdentity()
	identity.Profile.Name = ""
	assert.Equal(t, "ayu", farmerName(identity))

	identity.User.Email = ""
	assert.Equal(t, "Unknown Farmer", farmerName(identity))
}

func TestUpdateProductRequiresOwnership(t *testing.T) {
	writer := newFakeWriter()
	view := reactive.New()
	cs := NewCatalogService(writer, &fakePublisher{}, view)

	product, err := cs.AddProduct(context.Background(), testDraft(), testIdentity())
	require.NoError(t, err)

	intruder := &models.Identity{
		User: models.User{ID: "farmer-2", Email: "other@farm.test", Role: models.RoleFarmer},
	}
	edited := *product
	edited.Price = 1
	_, err = cs.UpdateProduct(context.Background(), &edited, intruder)
	assert.ErrorIs(t, err, models.ErrAuthRequired)

	// Admins may edit any listing.
	admin := &models.Identity{
		User: models.User{ID: "admin-1", Email: "admin@farm.test", Role: models.RoleAdmin},
	}
	updated, err := cs.UpdateProduct(context.Background(), &edited, admin)
	require.NoError(t, err)
	assert.Equal(t, float64(1), updated.Price)
	// Ownership fields never change on update.
	assert.Equal(t, "farmer-1", updated.FarmerID)
}

func TestDeleteProductRemovesFromView(t *testing.T) {
	writer := newFakeWriter()
	view := reactive.New()
	cs := NewCatalogService(writer, &fakePublisher{}, view)

	product, err := cs.AddProduct(context.Background(), testDraft(), testIdentity())
	require.NoError(t, err)
	require.Len(t, view.Products(), 1)

	require.NoError(t, cs.DeleteProduct(context.Background(), product.ID, testIdentity()))
	assert.Empty(t, view.Products())
}
