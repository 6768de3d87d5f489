package users

import (
	"time"

	"github.com/trendlens/trendlens-api/pkg/db/models"
	dbtypes "github.com/trendlens/trendlens-api/pkg/db/types"
)

// UserDTO is the transport shape of a user record.
type UserDTO struct {
	ID             string              `json:"id"`
	Email          string              `json:"email"`
	FullName       *string             `json:"fullName"`
	AvatarURL      *string             `json:"avatarUrl"`
	IsActive       bool                `json:"isActive"`
	IsAdmin        bool                `json:"isAdmin"`
	AdminLevel     int                 `json:"adminLevel"`
	TotalUseCases  int                 `json:"totalUseCases"`
	TotalTutorials int                 `json:"totalTutorials"`
	TotalBlogs     int                 `json:"totalBlogs"`
	Preferences    dbtypes.Preferences `json:"preferences"`
	Country        *string             `json:"country"`
	Locale         string              `json:"locale"`
	LastLoginAt    *time.Time          `json:"lastLoginAt"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:             u.ID,
		Email:          u.Email,
		FullName:       u.FullName,
		AvatarURL:      u.AvatarURL,
		IsActive:       u.IsActive,
		IsAdmin:        u.IsAdmin,
		AdminLevel:     u.AdminLevel,
		TotalUseCases:  u.TotalUseCases,
		TotalTutorials: u.TotalTutorials,
		TotalBlogs:     u.TotalBlogs,
		Preferences:    u.Preferences.WithDefaults(),
		Country:        u.Country,
		Locale:         u.Locale,
		LastLoginAt:    u.LastLoginAt,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// FromModels maps a slice of records, preserving order.
func FromModels(list []models.User) []UserDTO {
	out := make([]UserDTO, 0, len(list))
	for i := range list {
		out = append(out, *FromModel(&list[i]))
	}
	return out
}
