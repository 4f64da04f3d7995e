package reactive

import (
	"testing"

	"market-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id, name string) models.Product {
	return models.Product{
		ID:       id,
		Name:     name,
		Category: models.CategoryVegetables,
		Price:    10,
		Quantity: 5,
	}
}

func TestInsertProductIsIdempotentByID(t *testing.T) {
	s := New()

	p := product("x", "Tomatoes")
	require.NoError(t, s.InsertProduct(p))
	require.NoError(t, s.InsertProduct(p))

	products := s.Products()
	count := 0
	for _, got := range products {
		if got.ID == "x" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Len(t, products, 1)
}

func TestInsertProductPrependsNewestFirst(t *testing.T) {
	s := New()

	require.NoError(t, s.InsertProduct(product("1", "Carrots")))
	require.NoError(t, s.InsertProduct(product("2", "Potatoes")))
	require.NoError(t, s.InsertProduct(product("3", "Onions")))

	products := s.Products()
	require.Len(t, products, 3)
	assert.Equal(t, "3", products[0].ID)
	assert.Equal(t, "2", products[1].ID)
	assert.Equal(t, "1", products[2].ID)
}

func TestReplaceThenInsert(t *testing.T) {
	s := New()

	a := product("a", "Apples")
	b := product("b", "Beets")
	s.ReplaceProducts([]models.Product{a, b})

	products := s.Products()
	require.Len(t, products, 2)
	assert.Equal(t, "a", products[0].ID)
	assert.Equal(t, "b", products[1].ID)

	require.NoError(t, s.InsertProduct(product("c", "Corn")))

	products = s.Products()
	require.Len(t, products, 3)
	assert.Equal(t, "c", products[0].ID)
	assert.Equal(t, "a", products[1].ID)
	assert.Equal(t, "b", products[2].ID)
}

func TestReplaceProductsNilTreatedAsEmpty(t *testing.T) {
	s := New()
	require.NoError(t, s.InsertProduct(product("1", "Carrots")))

	s.ReplaceProducts(nil)
	assert.Empty(t, s.Products())
}

func TestInsertProductRejectsInvalid(t *testing.T) {
	s := New()

	bad := models.Product{ID: "1", Name: "Eggs", Category: "not-a-category", Price: -3}
	err := s.InsertProduct(bad)

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields, "category")
	assert.Contains(t, validation.Fields, "price")
	assert.Empty(t, s.Products())
}

func TestUpdateAndRemoveAreNoOpsWhenAbsent(t *testing.T) {
	s := New()
	require.NoError(t, s.InsertProduct(product("1", "Carrots")))

	require.NoError(t, s.UpdateProduct(product("missing", "Ghost")))
	s.RemoveProduct("missing")

	products := s.Products()
	require.Len(t, products, 1)
	assert.Equal(t, "1", products[0].ID)
}

func TestUpdateProductReplacesInPlace(t *testing.T) {
	s := New()
	require.NoError(t, s.InsertProduct(product("1", "Carrots")))
	require.NoError(t, s.InsertProduct(product("2", "Potatoes")))

	updated := product("1", "Organic Carrots")
	updated.Price = 12
	require.NoError(t, s.UpdateProduct(updated))

	products := s.Products()
	require.Len(t, products, 2)
	assert.Equal(t, "2", products[0].ID)
	assert.Equal(t, "Organic Carrots", products[1].Name)
	assert.Equal(t, float64(12), products[1].Price)
}

func TestUnreadCount(t *testing.T) {
	s := New()

	for i, id := range []string{"n1", "n2", "n3", "n4", "n5"} {
		s.AddNotification(models.Notification{
			ID:      id,
			Message: "msg",
			Type:    models.NotificationInfo,
			Read:    i < 2,
		})
	}

	assert.Equal(t, 3, s.UnreadCount())

	s.ClearNotifications()
	assert.Equal(t, 0, s.UnreadCount())
	assert.Empty(t, s.Notifications())
}

func TestMarkRead(t *testing.T) {
	s := New()
	s.AddNotification(models.Notification{ID: "n1", Message: "msg", Type: models.NotificationInfo})

	s.MarkRead("n1")
	assert.Equal(t, 0, s.UnreadCount())
	assert.True(t, s.Notifications()[0].Read)

	// Unknown id is a no-op.
	s.MarkRead("missing")
}

func TestAddNotificationDedupesByID(t *testing.T) {
	s := New()

	n := models.Notification{ID: "n1", Message: "msg", Type: models.NotificationSuccess}
	s.AddNotification(n)
	s.AddNotification(n)

	assert.Len(t, s.Notifications(), 1)
}

func TestObserversNotifiedOnEveryMutation(t *testing.T) {
	s := New()

	calls := 0
	unsubscribe := s.Subscribe(func() { calls++ })

	require.NoError(t, s.InsertProduct(product("1", "Carrots")))
	s.ReplaceProducts(nil)
	s.AddNotification(models.Notification{ID: "n1", Message: "msg", Type: models.NotificationInfo})
	s.MarkRead("n1")
	s.ClearNotifications()

	assert.Equal(t, 5, calls)

	unsubscribe()
	require.NoError(t, s.InsertProduct(product("2", "Potatoes")))
	assert.Equal(t, 5, calls)
}

func TestObserverSeesPostState(t *testing.T) {
	s := New()

	var seen []models.Product
	s.Subscribe(func() { seen = s.Products() })

	require.NoError(t, s.InsertProduct(product("1", "Carrots")))

	require.Len(t, seen, 1)
	assert.Equal(t, "1", seen[0].ID)
}
