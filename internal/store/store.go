package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"market-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// CreateProduct inserts a product and fills in the server-assigned
// id, created_at and updated_at on the passed record.
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (name, description, category, price, unit, quantity, images, farmer_id, farmer_name, location, organic)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		p.Name, p.Description, p.Category, p.Price, p.Unit, p.Quantity,
		pq.Array([]string(p.Images)), p.FarmerID, p.FarmerName, p.Location, p.Organic,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts retrieves the full product snapshot, newest first.
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products ORDER BY created_at DESC")
	return products, err
}

// GetProductsByFarmer retrieves a single farmer's listings, newest first.
func (s *Store) GetProductsByFarmer(ctx context.Context, farmerID string) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE farmer_id = $1 ORDER BY created_at DESC", farmerID)
	return products, err
}

// UpdateProduct updates the mutable fields of a product and refreshes
// updated_at. created_at is never touched.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products
		SET name = $1, description = $2, category = $3, price = $4, unit = $5,
		    quantity = $6, images = $7, location = $8, organic = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		p.Name, p.Description, p.Category, p.Price, p.Unit,
		p.Quantity, pq.Array([]string(p.Images)), p.Location, p.Organic, p.ID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// DeleteProduct removes a product by id.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	return err
}
