package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"market-service/internal/models"
	"market-service/internal/reactive"
	"market-service/internal/redisclient"
	"market-service/internal/service"
	"market-service/internal/store"
	"market-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const identityKey = "identity"

// Handler contains HTTP handlers
type Handler struct {
	auth    *service.AuthService
	catalog *service.CatalogService
	view    *reactive.Store
	db      *store.Store
	cache   *redisclient.Client
	hub     *Hub
}

// NewHandler creates a new HTTP handler
func NewHandler(
	auth *service.AuthService,
	catalog *service.CatalogService,
	view *reactive.Store,
	db *store.Store,
	cache *redisclient.Client,
	hub *Hub,
) *Handler {
	return &Handler{
		auth:    auth,
		catalog: catalog,
		view:    view,
		db:      db,
		cache:   cache,
		hub:     hub,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/register", h.register)
		v1.POST("/auth/login", h.login)
		v1.POST("/auth/logout", h.sessionRequired(), h.logout)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.POST("/products", h.sessionRequired(), h.createProduct)
		v1.PUT("/products/:id", h.sessionRequired(), h.updateProduct)
		v1.DELETE("/products/:id", h.sessionRequired(), h.deleteProduct)

		v1.GET("/notifications", h.sessionRequired(), h.listNotifications)
		v1.POST("/notifications/:id/read", h.sessionRequired(), h.markNotificationRead)
		v1.DELETE("/notifications", h.sessionRequired(), h.clearNotifications)

		v1.GET("/prices", h.listPrices)

		v1.GET("/ws", h.hub.Serve)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
	Name     string `json:"name"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	user, err := h.auth.SignUp(c.Request.Context(), req.Email, req.Password, req.Role, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	session, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.auth.SignOut(c.Request.Context(), bearerToken(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// listProducts serves the reactive view: the same snapshot every other
// consumer sees, no database round trip.
func (h *Handler) listProducts(c *gin.Context) {
	products := h.view.Products()

	if category := c.Query("category"); category != "" {
		category = models.NormalizeCategory(category)
		filtered := products[:0]
		for _, p := range products {
			if p.Category == category {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.db.GetProductByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) createProduct(c *gin.Context) {
	var draft models.ProductDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	product, err := h.catalog.AddProduct(c.Request.Context(), &draft, h.identity(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	product.ID = c.Param("id")

	updated, err := h.catalog.UpdateProduct(c.Request.Context(), &product, h.identity(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.catalog.DeleteProduct(c.Request.Context(), c.Param("id"), h.identity(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"notifications": h.view.Notifications(),
		"unread":        h.view.UnreadCount(),
	})
}

func (h *Handler) markNotificationRead(c *gin.Context) {
	if err := h.catalog.MarkNotificationRead(c.Request.Context(), c.Param("id"), h.identity(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) clearNotifications(c *gin.Context) {
	if err := h.catalog.ClearNotifications(c.Request.Context(), h.identity(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// listPrices serves the market price board through the Redis cache.
func (h *Handler) listPrices(c *gin.Context) {
	ctx := c.Request.Context()

	prices, err := h.cache.GetCachedPrices(ctx)
	if err == nil && prices != nil {
		c.JSON(http.StatusOK, gin.H{"prices": prices, "cached": true})
		return
	}

	prices, err = h.db.GetMarketPrices(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load prices"})
		return
	}

	if err := h.cache.CachePrices(ctx, prices, time.Minute); err != nil {
		util.GetLogger().Warn("Failed to cache prices")
	}

	c.JSON(http.StatusOK, gin.H{"prices": prices})
}

// sessionRequired resolves the bearer token and stashes the identity in
// the request context. Requests without a valid session get 401.
func (h *Handler) sessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := h.auth.CurrentSession(c.Request.Context(), bearerToken(c))
		if err != nil || session == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		identity, err := h.auth.Identity(c.Request.Context(), session)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

func (h *Handler) identity(c *gin.Context) *models.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*models.Identity)
	return identity
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	return strings.TrimPrefix(header, "Bearer ")
}

// writeError maps the service error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var validation *models.ValidationError
	var writeFailed *models.WriteFailedError

	switch {
	case errors.Is(err, models.ErrAuthRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": validation.Fields})
	case errors.As(err, &writeFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Write failed", "details": writeFailed.Err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "details": err.Error()})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
