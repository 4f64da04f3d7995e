package models

import (
	"time"

	"github.com/lib/pq"
)

// Product categories (closed set). Anything else normalizes to CategoryOther.
const (
	CategoryVegetables = "vegetables"
	CategoryFruits     = "fruits"
	CategoryGrains     = "grains"
	CategoryDairy      = "dairy"
	CategoryMeat       = "meat"
	CategoryPoultry    = "poultry"
	CategoryHerbs      = "herbs"
	CategoryOther      = "other"
)

var validCategories = map[string]bool{
	CategoryVegetables: true,
	CategoryFruits:     true,
	CategoryGrains:     true,
	CategoryDairy:      true,
	CategoryMeat:       true,
	CategoryPoultry:    true,
	CategoryHerbs:      true,
	CategoryOther:      true,
}

// PlaceholderImage is used when a product is listed without photos.
const PlaceholderImage = "/placeholder.svg"

// Product represents a listing in the marketplace catalog
type Product struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Description string         `db:"description" json:"description"`
	Category    string         `db:"category" json:"category"`
	Price       float64        `db:"price" json:"price"`
	Unit        string         `db:"unit" json:"unit"`
	Quantity    float64        `db:"quantity" json:"quantity"`
	Images      pq.StringArray `db:"images" json:"images"`
	FarmerID    string         `db:"farmer_id" json:"farmer_id"`
	FarmerName  string         `db:"farmer_name" json:"farmer_name"`
	Location    string         `db:"location" json:"location"`
	Organic     bool           `db:"organic" json:"organic"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// ProductDraft is the user-supplied portion of a product before the
// server assigns identity and ownership fields.
type ProductDraft struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Unit        string   `json:"unit"`
	Quantity    float64  `json:"quantity"`
	Images      []string `json:"images"`
	Location    string   `json:"location"`
	Organic     bool     `json:"organic"`
}

// Notification types
const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationWarning = "warning"
	NotificationError   = "error"
)

// Notification represents a user-facing event message
type Notification struct {
	ID        string    `db:"id" json:"id"`
	Message   string    `db:"message" json:"message"`
	Type      string    `db:"type" json:"type"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// User roles
const (
	RoleFarmer = "farmer"
	RoleBuyer  = "buyer"
	RoleAdmin  = "admin"
)

// User is the authenticated principal
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Profile holds user-supplied attributes attached to a User
type Profile struct {
	UserID   string `db:"user_id" json:"user_id"`
	Name     string `db:"name" json:"name"`
	Location string `db:"location" json:"location"`
	Phone    string `db:"phone" json:"phone"`
}

// Session is an authenticated identity context with a token lifecycle
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Identity pairs a session's user with its profile; write operations
// require a non-nil Identity.
type Identity struct {
	User    User
	Profile Profile
}

// MarketPrice is a row on the market price board
type MarketPrice struct {
	ID            string    `db:"id" json:"id"`
	ProductName   string    `db:"product_name" json:"product_name"`
	Category      string    `db:"category" json:"category"`
	CurrentPrice  float64   `db:"current_price" json:"current_price"`
	PreviousPrice float64   `db:"previous_price" json:"previous_price"`
	Unit          string    `db:"unit" json:"unit"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Trend reports the price direction relative to the previous quote.
func (m *MarketPrice) Trend() string {
	switch {
	case m.CurrentPrice > m.PreviousPrice:
		return "up"
	case m.CurrentPrice < m.PreviousPrice:
		return "down"
	default:
		return "stable"
	}
}

// NormalizeCategory maps unrecognized categories to CategoryOther.
func NormalizeCategory(raw string) string {
	if validCategories[raw] {
		return raw
	}
	return CategoryOther
}

// ValidateProduct checks the invariants every stored product must hold.
func ValidateProduct(p *Product) error {
	var fields []string
	if p.ID == "" {
		fields = append(fields, "id")
	}
	if p.Name == "" {
		fields = append(fields, "name")
	}
	if p.Price < 0 {
		fields = append(fields, "price")
	}
	if p.Quantity < 0 {
		fields = append(fields, "quantity")
	}
	if !validCategories[p.Category] {
		fields = append(fields, "category")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// NormalizeDraft coerces a draft into the closed, validated shape.
// Category is always normalized; numeric range violations are errors.
func NormalizeDraft(d *ProductDraft) error {
	d.Category = NormalizeCategory(d.Category)

	var fields []string
	if d.Name == "" {
		fields = append(fields, "name")
	}
	if d.Price < 0 {
		fields = append(fields, "price")
	}
	if d.Quantity < 0 {
		fields = append(fields, "quantity")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}

	if len(d.Images) == 0 {
		d.Images = []string{PlaceholderImage}
	}
	return nil
}
