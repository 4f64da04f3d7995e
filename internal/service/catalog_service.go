package service

import (
	"context"
	"fmt"
	"strings"

	"market-service/internal/models"
	"market-service/internal/reactive"
	"market-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CatalogWriter is the persistence surface the catalog service writes
// through. *store.Store satisfies it.
type CatalogWriter interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	CreateNotification(ctx context.Context, n *models.Notification) error
	MarkNotificationRead(ctx context.Context, id string) error
	ClearNotifications(ctx context.Context) error
}

// ChangePublisher pushes mutations onto the change feed so other
// consumers converge. *broker.ChangeFeedPublisher satisfies it.
type ChangePublisher interface {
	PublishProductInserted(ctx context.Context, p *models.Product) error
	PublishProductUpdated(ctx context.Context, p *models.Product) error
	PublishProductDeleted(ctx context.Context, id string) error
	PublishNotificationInserted(ctx context.Context, n *models.Notification) error
	PublishNotificationUpdated(ctx context.Context, n *models.Notification) error
}

// CatalogService performs user-initiated catalog writes with low
// perceived latency: the authoritative record returned by the database
// is injected into the reactive store immediately rather than waiting
// for the change-feed echo. The store's id-dedup absorbs the echo.
type CatalogService struct {
	writer    CatalogWriter
	publisher ChangePublisher
	store     *reactive.Store
	logger    *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(writer CatalogWriter, publisher ChangePublisher, store *reactive.Store) *CatalogService {
	return &CatalogService{
		writer:    writer,
		publisher: publisher,
		store:     store,
		logger:    util.GetLogger(),
	}
}

// AddProduct validates a draft, persists it, and optimistically inserts
// the authoritative record. Requires a non-nil identity; no remote call
// is made without one. The service does not retry: resubmitting after a
// failure creates a distinct record.
func (cs *CatalogService) AddProduct(ctx context.Context, draft *models.ProductDraft, identity *models.Identity) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.AddProduct")
	defer span.End()

	if identity == nil {
		util.ProductWritesFailedTotal.WithLabelValues("auth").Inc()
		return nil, models.ErrAuthRequired
	}

	if err := models.NormalizeDraft(draft); err != nil {
		util.ProductWritesFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	product := &models.Product{
		Name:        draft.Name,
		Description: draft.Description,
		Category:    draft.Category,
		Price:       draft.Price,
		Unit:        draft.Unit,
		Quantity:    draft.Quantity,
		Images:      draft.Images,
		FarmerID:    identity.User.ID,
		FarmerName:  farmerName(identity),
		Location:    draft.Location,
		Organic:     draft.Organic,
	}

	if err := cs.writer.CreateProduct(ctx, product); err != nil {
		util.ProductWritesFailedTotal.WithLabelValues("remote").Inc()
		return nil, &models.WriteFailedError{Op: "add product", Err: err}
	}

	util.ProductsCreatedTotal.Inc()
	cs.logger.Info("Product listed",
		zap.String("product_id", product.ID),
		zap.String("farmer_id", product.FarmerID))

	// Optimistic injection; the change-feed echo for this id is a no-op.
	if err := cs.store.InsertProduct(*product); err != nil {
		cs.logger.Warn("Optimistic insert rejected", zap.Error(err))
	}

	cs.notify(ctx, fmt.Sprintf("New product added: %s", product.Name), models.NotificationSuccess)

	if err := cs.publisher.PublishProductInserted(ctx, product); err != nil {
		cs.logger.Error("Failed to publish product insert", zap.Error(err))
	}

	return product, nil
}

// UpdateProduct persists changes to an existing listing. Only the owner
// (or an admin) may update it.
func (cs *CatalogService) UpdateProduct(ctx context.Context, product *models.Product, identity *models.Identity) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct")
	defer span.End()

	if identity == nil {
		util.ProductWritesFailedTotal.WithLabelValues("auth").Inc()
		return nil, models.ErrAuthRequired
	}

	existing, err := cs.writer.GetProductByID(ctx, product.ID)
	if err != nil {
		return nil, &models.WriteFailedError{Op: "update product", Err: err}
	}
	if err := cs.requireOwner(existing, identity); err != nil {
		return nil, err
	}

	product.Category = models.NormalizeCategory(product.Category)
	product.FarmerID = existing.FarmerID
	product.FarmerName = existing.FarmerName
	if err := models.ValidateProduct(product); err != nil {
		util.ProductWritesFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	if err := cs.writer.UpdateProduct(ctx, product); err != nil {
		util.ProductWritesFailedTotal.WithLabelValues("remote").Inc()
		return nil, &models.WriteFailedError{Op: "update product", Err: err}
	}

	if err := cs.store.UpdateProduct(*product); err != nil {
		cs.logger.Warn("Optimistic update rejected", zap.Error(err))
	}

	cs.notify(ctx, fmt.Sprintf("Product updated: %s", product.Name), models.NotificationInfo)

	if err := cs.publisher.PublishProductUpdated(ctx, product); err != nil {
		cs.logger.Error("Failed to publish product update", zap.Error(err))
	}

	return product, nil
}

// DeleteProduct removes a listing. Only the owner (or an admin) may
// delete it.
func (cs *CatalogService) DeleteProduct(ctx context.Context, id string, identity *models.Identity) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteProduct")
	defer span.End()

	if identity == nil {
		util.ProductWritesFailedTotal.WithLabelValues("auth").Inc()
		return models.ErrAuthRequired
	}

	existing, err := cs.writer.GetProductByID(ctx, id)
	if err != nil {
		return &models.WriteFailedError{Op: "delete product", Err: err}
	}
	if err := cs.requireOwner(existing, identity); err != nil {
		return err
	}

	if err := cs.writer.DeleteProduct(ctx, id); err != nil {
		util.ProductWritesFailedTotal.WithLabelValues("remote").Inc()
		return &models.WriteFailedError{Op: "delete product", Err: err}
	}

	cs.store.RemoveProduct(id)
	cs.notify(ctx, fmt.Sprintf("Product deleted: %s", existing.Name), models.NotificationWarning)

	if err := cs.publisher.PublishProductDeleted(ctx, id); err != nil {
		cs.logger.Error("Failed to publish product delete", zap.Error(err))
	}

	return nil
}

// MarkNotificationRead persists the read flag and updates the store.
func (cs *CatalogService) MarkNotificationRead(ctx context.Context, id string, identity *models.Identity) error {
	if identity == nil {
		return models.ErrAuthRequired
	}

	if err := cs.writer.MarkNotificationRead(ctx, id); err != nil {
		return &models.WriteFailedError{Op: "mark notification read", Err: err}
	}

	cs.store.MarkRead(id)

	n := &models.Notification{ID: id, Read: true}
	if err := cs.publisher.PublishNotificationUpdated(ctx, n); err != nil {
		cs.logger.Error("Failed to publish notification update", zap.Error(err))
	}
	return nil
}

// ClearNotifications empties the notification list everywhere.
func (cs *CatalogService) ClearNotifications(ctx context.Context, identity *models.Identity) error {
	if identity == nil {
		return models.ErrAuthRequired
	}

	if err := cs.writer.ClearNotifications(ctx); err != nil {
		return &models.WriteFailedError{Op: "clear notifications", Err: err}
	}

	cs.store.ClearNotifications()
	return nil
}

// notify persists a notification and injects it optimistically, the same
// pattern as product writes. Failures here never fail the parent write.
func (cs *CatalogService) notify(ctx context.Context, message, kind string) {
	n := &models.Notification{Message: message, Type: kind}
	if err := cs.writer.CreateNotification(ctx, n); err != nil {
		cs.logger.Warn("Failed to persist notification", zap.Error(err))
		// Surface it locally with a synthetic id, but keep it off the
		// change feed: no database row backs it.
		n.ID = uuid.New().String()
		cs.store.AddNotification(*n)
		return
	}

	cs.store.AddNotification(*n)

	if err := cs.publisher.PublishNotificationInserted(ctx, n); err != nil {
		cs.logger.Error("Failed to publish notification insert", zap.Error(err))
	}
}

func (cs *CatalogService) requireOwner(p *models.Product, identity *models.Identity) error {
	if identity.User.Role == models.RoleAdmin || p.FarmerID == identity.User.ID {
		return nil
	}
	return models.ErrAuthRequired
}

// farmerName resolves the display name for a listing: profile name,
// then the email local-part, then a fixed fallback.
func farmerName(identity *models.Identity) string {
	if identity.Profile.Name != "" {
		return identity.Profile.Name
	}
	if at := strings.Index(identity.User.Email, "@"); at > 0 {
		return identity.User.Email[:at]
	}
	return "Unknown Farmer"
}
