package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"estately/internal/platform/models"
)

var ErrNotFound = errors.New("not found")

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type PropertyRepository struct {
	db *sql.DB
}

func NewPropertyRepository(db *sql.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

func (r *PropertyRepository) Create(ctx context.Context, property *models.Property) error {
	if property.CreatedAt == 0 {
		property.CreatedAt = time.Now().Unix()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO properties (id, owner_id, title, created_at)
		VALUES (?, ?, ?, ?)
	`, property.ID, property.OwnerID, property.Title, property.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert property: %w", err)
	}
	return nil
}

// GetByID returns ErrNotFound when no property has the id.
func (r *PropertyRepository) GetByID(ctx context.Context, id string) (*models.Property, error) {
	property := &models.Property{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, created_at
		FROM properties WHERE id = ?
	`, id).Scan(&property.ID, &property.OwnerID, &property.Title, &property.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get property: %w", err)
	}
	return property, nil
}
