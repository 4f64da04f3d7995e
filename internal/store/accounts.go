package store

import (
	"context"
	"database/sql"
	"fmt"

	"market-service/internal/models"
)

// CreateUser inserts a user row with a hashed password and fills in the
// server-assigned id and created_at.
func (s *Store) CreateUser(ctx context.Context, user *models.User, passwordHash string) error {
	query := `
		INSERT INTO users (email, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return s.db.QueryRowxContext(ctx, query,
		user.Email, passwordHash, user.Role,
	).Scan(&user.ID, &user.CreatedAt)
}

// GetUserByEmail retrieves a user and their password hash by email.
// Returns (nil, "", nil) when no such user exists.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, string, error) {
	var row struct {
		models.User
		PasswordHash string `db:"password_hash"`
	}
	err := s.db.GetContext(ctx, &row,
		"SELECT id, email, role, created_at, password_hash FROM users WHERE email = $1", email)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return &row.User, row.PasswordHash, nil
}

// GetUserByID retrieves a user by id.
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		"SELECT id, email, role, created_at FROM users WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpsertProfile creates or replaces a user's profile row.
func (s *Store) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	query := `
		INSERT INTO profiles (user_id, name, location, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET name = EXCLUDED.name, location = EXCLUDED.location, phone = EXCLUDED.phone`

	_, err := s.db.ExecContext(ctx, query,
		profile.UserID, profile.Name, profile.Location, profile.Phone)
	return err
}

// GetProfile retrieves a user's profile. Returns (nil, nil) when the
// user has not filled one in yet.
func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.GetContext(ctx, &profile,
		"SELECT * FROM profiles WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateNotification inserts a notification and fills in id/created_at.
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (message, type, read)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return s.db.QueryRowxContext(ctx, query,
		n.Message, n.Type, n.Read,
	).Scan(&n.ID, &n.CreatedAt)
}

// GetNotifications retrieves the notification snapshot, newest first.
func (s *Store) GetNotifications(ctx context.Context) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.db.SelectContext(ctx, &notifications,
		"SELECT * FROM notifications ORDER BY created_at DESC")
	return notifications, err
}

// MarkNotificationRead sets read=true on a notification.
func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = TRUE WHERE id = $1", id)
	return err
}

// ClearNotifications removes all notifications.
func (s *Store) ClearNotifications(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM notifications")
	return err
}

// GetMarketPrices retrieves the price board ordered by product name.
func (s *Store) GetMarketPrices(ctx context.Context) ([]models.MarketPrice, error) {
	var prices []models.MarketPrice
	err := s.db.SelectContext(ctx, &prices,
		"SELECT * FROM market_prices ORDER BY product_name")
	return prices, err
}
