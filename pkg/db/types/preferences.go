package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

const (
	DefaultTheme    = "light"
	DefaultLanguage = "zh"
	DefaultCurrency = "CNY"
	DefaultTimezone = "Asia/Shanghai"
	DefaultLocale   = "zh"
)

// Preferences is the per-user UI preference blob stored as jsonb.
type Preferences struct {
	Theme    string `json:"theme"`
	Language string `json:"language"`
	Currency string `json:"currency"`
	Timezone string `json:"timezone"`
}

// DefaultPreferences returns the values applied to new accounts.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:    DefaultTheme,
		Language: DefaultLanguage,
		Currency: DefaultCurrency,
		Timezone: DefaultTimezone,
	}
}

// Merge overlays the non-empty fields of patch onto p.
func (p Preferences) Merge(patch Preferences) Preferences {
	if patch.Theme != "" {
		p.Theme = patch.Theme
	}
	if patch.Language != "" {
		p.Language = patch.Language
	}
	if patch.Currency != "" {
		p.Currency = patch.Currency
	}
	if patch.Timezone != "" {
		p.Timezone = patch.Timezone
	}
	return p
}

// WithDefaults fills empty fields from DefaultPreferences.
func (p Preferences) WithDefaults() Preferences {
	return DefaultPreferences().Merge(p)
}

func (p *Preferences) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = DefaultPreferences()
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("Preferences: unsupported Scan type %T", src)
	}

	if len(raw) == 0 {
		*p = DefaultPreferences()
		return nil
	}
	var decoded Preferences
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("Preferences: decode: %w", err)
	}
	*p = decoded.WithDefaults()
	return nil
}

func (p Preferences) Value() (driver.Value, error) {
	b, err := json.Marshal(p.WithDefaults())
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
