package users

import (
	"time"

	"github.com/trendlens/trendlens-api/pkg/clerk"
	"github.com/trendlens/trendlens-api/pkg/db/models"
	dbtypes "github.com/trendlens/trendlens-api/pkg/db/types"
)

// Profile is the provider-owned slice of a user record.
type Profile struct {
	ID          string
	Email       string
	FullName    *string
	AvatarURL   *string
	IsAdmin     bool
	AdminLevel  int
	Preferences dbtypes.Preferences
	Country     *string
	Locale      string
	CreatedAt   time.Time
	LastLoginAt time.Time
}

// ProfileFromClerk maps a provider user object. Missing or malformed dates
// fall back to now.
func ProfileFromClerk(u *clerk.UserData, now time.Time) Profile {
	return Profile{
		ID:          u.ID,
		Email:       u.PrimaryEmail(),
		FullName:    u.FullName(),
		AvatarURL:   u.AvatarURL(),
		IsAdmin:     u.IsAdmin(),
		AdminLevel:  u.AdminLevel(),
		Preferences: u.Preferences(),
		Country:     u.Country(),
		Locale:      u.Locale(),
		CreatedAt:   u.CreatedAt.OrNow(now),
		LastLoginAt: u.LastSignInAt.OrNow(now),
	}
}

// bareProfile is used when no provider data is available.
func bareProfile(id string, now time.Time) Profile {
	return Profile{
		ID:          id,
		Preferences: dbtypes.DefaultPreferences(),
		Locale:      dbtypes.DefaultLocale,
		CreatedAt:   now,
		LastLoginAt: now,
	}
}

func (p Profile) newRecord(now time.Time) *models.User {
	locale := p.Locale
	if locale == "" {
		locale = dbtypes.DefaultLocale
	}
	lastLogin := p.LastLoginAt
	if lastLogin.IsZero() {
		lastLogin = now
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return &models.User{
		ID:          p.ID,
		Email:       p.Email,
		FullName:    p.FullName,
		AvatarURL:   p.AvatarURL,
		IsActive:    true,
		IsAdmin:     p.IsAdmin,
		AdminLevel:  clampLevel(p.AdminLevel),
		Preferences: p.Preferences.WithDefaults(),
		Country:     p.Country,
		Locale:      locale,
		LastLoginAt: &lastLogin,
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	}
}

// updateFields lists the columns a profile refresh overwrites. Usage counters
// and preferences are never touched here.
func (p Profile) updateFields(now time.Time) map[string]any {
	locale := p.Locale
	if locale == "" {
		locale = dbtypes.DefaultLocale
	}
	return map[string]any{
		"email":       p.Email,
		"full_name":   p.FullName,
		"avatar_url":  p.AvatarURL,
		"is_active":   true,
		"is_admin":    p.IsAdmin,
		"admin_level": clampLevel(p.AdminLevel),
		"country":     p.Country,
		"locale":      locale,
		"updated_at":  now,
	}
}

func clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	return level
}
