package models

import (
	"time"

	dbtypes "github.com/trendlens/trendlens-api/pkg/db/types"
)

// User mirrors an identity-provider account. ID is the provider's opaque user id.
type User struct {
	ID             string              `gorm:"column:id;type:text;primaryKey"`
	Email          string              `gorm:"column:email;type:text;not null;default:''"`
	FullName       *string             `gorm:"column:full_name"`
	AvatarURL      *string             `gorm:"column:avatar_url"`
	IsActive       bool                `gorm:"column:is_active;not null;default:true"`
	IsAdmin        bool                `gorm:"column:is_admin;not null;default:false"`
	AdminLevel     int                 `gorm:"column:admin_level;not null;default:0"`
	TotalUseCases  int                 `gorm:"column:total_use_cases;not null;default:0"`
	TotalTutorials int                 `gorm:"column:total_tutorials;not null;default:0"`
	TotalBlogs     int                 `gorm:"column:total_blogs;not null;default:0"`
	Preferences    dbtypes.Preferences `gorm:"column:preferences;type:jsonb"`
	Country        *string             `gorm:"column:country"`
	Locale         string              `gorm:"column:locale;not null;default:'zh'"`
	LastLoginAt    *time.Time          `gorm:"column:last_login_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (User) TableName() string { return "users" }
