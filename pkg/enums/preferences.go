package enums

import "fmt"

// Theme is the UI color scheme a user picked.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

var validThemes = []Theme{ThemeLight, ThemeDark}

func (t Theme) String() string {
	return string(t)
}

func (t Theme) IsValid() bool {
	for _, candidate := range validThemes {
		if candidate == t {
			return true
		}
	}
	return false
}

// Language is a supported UI language.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageChinese Language = "zh"
)

var validLanguages = []Language{LanguageEnglish, LanguageChinese}

func (l Language) String() string {
	return string(l)
}

func (l Language) IsValid() bool {
	for _, candidate := range validLanguages {
		if candidate == l {
			return true
		}
	}
	return false
}

// Currency is the display currency for prices.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyCNY Currency = "CNY"
)

var validCurrencies = []Currency{CurrencyUSD, CurrencyCNY}

func (c Currency) String() string {
	return string(c)
}

func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts a raw string into a Currency.
func ParseCurrency(value string) (Currency, error) {
	c := Currency(value)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid currency %q", value)
	}
	return c, nil
}
