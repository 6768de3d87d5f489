package clerk

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	dbtypes "github.com/trendlens/trendlens-api/pkg/db/types"
)

// EmailAddress is one entry of a user's email_addresses list.
type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// UserData is the user object carried by user.* webhook events and returned by
// the Backend API. Only the fields the API mirrors are decoded.
type UserData struct {
	ID                    string          `json:"id"`
	EmailAddresses        []EmailAddress  `json:"email_addresses"`
	PrimaryEmailAddressID *string         `json:"primary_email_address_id"`
	FirstName             *string         `json:"first_name"`
	LastName              *string         `json:"last_name"`
	ImageURL              *string         `json:"image_url"`
	ProfileImageURL       *string         `json:"profile_image_url"`
	PublicMetadata        json.RawMessage `json:"public_metadata"`
	CreatedAt             Timestamp       `json:"created_at"`
	UpdatedAt             Timestamp       `json:"updated_at"`
	LastSignInAt          Timestamp       `json:"last_sign_in_at"`
}

// PrimaryEmail returns the address whose id matches primary_email_address_id,
// else the first listed address, else "".
func (u *UserData) PrimaryEmail() string {
	if u == nil || len(u.EmailAddresses) == 0 {
		return ""
	}
	if u.PrimaryEmailAddressID != nil {
		for _, e := range u.EmailAddresses {
			if e.ID == *u.PrimaryEmailAddressID {
				return e.EmailAddress
			}
		}
	}
	return u.EmailAddresses[0].EmailAddress
}

// FullName joins first and last name. Nil when both are blank.
func (u *UserData) FullName() *string {
	if u == nil {
		return nil
	}
	name := strings.TrimSpace(deref(u.FirstName) + " " + deref(u.LastName))
	if name == "" {
		return nil
	}
	return &name
}

// AvatarURL prefers image_url over the legacy profile_image_url.
func (u *UserData) AvatarURL() *string {
	if u == nil {
		return nil
	}
	for _, candidate := range []*string{u.ImageURL, u.ProfileImageURL} {
		if v := strings.TrimSpace(deref(candidate)); v != "" {
			return &v
		}
	}
	return nil
}

func (u *UserData) IsAdmin() bool {
	return truthy(u.metadata()["isAdmin"])
}

// AdminLevel reads public_metadata.adminLevel, clamped to >= 0.
func (u *UserData) AdminLevel() int {
	level := 0
	switch v := u.metadata()["adminLevel"].(type) {
	case float64:
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			level = int(v)
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			level = int(f)
		}
	}
	if level < 0 {
		return 0
	}
	return level
}

// Preferences merges public_metadata.preferences over the defaults.
func (u *UserData) Preferences() dbtypes.Preferences {
	prefs := dbtypes.DefaultPreferences()
	raw, ok := u.metadata()["preferences"].(map[string]any)
	if !ok {
		return prefs
	}
	return prefs.Merge(dbtypes.Preferences{
		Theme:    stringValue(raw["theme"]),
		Language: stringValue(raw["language"]),
		Currency: stringValue(raw["currency"]),
		Timezone: stringValue(raw["timezone"]),
	})
}

func (u *UserData) Country() *string {
	if c := stringValue(u.metadata()["country"]); c != "" {
		return &c
	}
	return nil
}

func (u *UserData) Locale() string {
	if l := stringValue(u.metadata()["locale"]); l != "" {
		return l
	}
	return dbtypes.DefaultLocale
}

func (u *UserData) metadata() map[string]any {
	if u == nil || len(u.PublicMetadata) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(u.PublicMetadata, &m); err != nil {
		return nil
	}
	return m
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
