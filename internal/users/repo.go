package users

import (
	"context"
	"time"

	"github.com/trendlens/trendlens-api/internal/repo"
	"github.com/trendlens/trendlens-api/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// FindByID loads a user by their provider id.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// InsertIfAbsent inserts the user unless a row with the same id exists.
// It reports whether a row was written.
func (r *Repository) InsertIfAbsent(ctx context.Context, user *models.User) (bool, error) {
	res := r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(user)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateFields applies a partial update and returns the number of matched rows.
func (r *Repository) UpdateFields(ctx context.Context, id string, fields map[string]any) (int64, error) {
	return r.UpdateByID(ctx, &models.User{}, id, fields)
}

// Deactivate flips is_active off without touching any profile field.
func (r *Repository) Deactivate(ctx context.Context, id string, at time.Time) (int64, error) {
	return r.UpdateFields(ctx, id, map[string]any{
		"is_active":  false,
		"updated_at": at,
	})
}

// UpdateLastLogin refreshes last_login_at.
func (r *Repository) UpdateLastLogin(ctx context.Context, id string, at time.Time) (int64, error) {
	return r.UpdateFields(ctx, id, map[string]any{
		"last_login_at": at,
		"updated_at":    at,
	})
}

// ListRecent returns the most recently created users, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]models.User, error) {
	var out []models.User
	err := r.DB(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Count returns the total number of user rows, active or not.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB(ctx).Model(&models.User{}).Count(&n).Error
	return n, err
}
