package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, CategoryVegetables, NormalizeCategory("vegetables"))
	assert.Equal(t, CategoryHerbs, NormalizeCategory("herbs"))
	assert.Equal(t, CategoryOther, NormalizeCategory("xyz123"))
	assert.Equal(t, CategoryOther, NormalizeCategory(""))
	assert.Equal(t, CategoryOther, NormalizeCategory("Vegetables"))
}

func TestNormalizeDraft(t *testing.T) {
	draft := &ProductDraft{
		Name:     "Eggs",
		Category: "free-range",
		Price:    2,
		Quantity: 12,
	}

	require.NoError(t, NormalizeDraft(draft))
	assert.Equal(t, CategoryOther, draft.Category)
	assert.Equal(t, []string{PlaceholderImage}, draft.Images)
}

func TestNormalizeDraftReportsAllBadFields(t *testing.T) {
	draft := &ProductDraft{Price: -1, Quantity: -1}

	err := NormalizeDraft(draft)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.ElementsMatch(t, []string{"name", "price", "quantity"}, validation.Fields)
}

func TestValidateProduct(t *testing.T) {
	good := &Product{ID: "1", Name: "Milk", Category: CategoryDairy, Price: 1.5, Quantity: 10}
	assert.NoError(t, ValidateProduct(good))

	bad := &Product{Category: "nope", Price: -1}
	err := ValidateProduct(bad)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.ElementsMatch(t, []string{"id", "name", "price", "category"}, validation.Fields)
}

func TestMarketPriceTrend(t *testing.T) {
	up := &MarketPrice{CurrentPrice: 5, PreviousPrice: 4}
	down := &MarketPrice{CurrentPrice: 3, PreviousPrice: 4}
	flat := &MarketPrice{CurrentPrice: 4, PreviousPrice: 4}

	assert.Equal(t, "up", up.Trend())
	assert.Equal(t, "down", down.Trend())
	assert.Equal(t, "stable", flat.Trend())
}
