package clerk

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbtypes "github.com/trendlens/trendlens-api/pkg/db/types"
)

func decodeUser(t *testing.T, raw string) *UserData {
	t.Helper()
	var u UserData
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	return &u
}

func TestPrimaryEmailSelection(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "primary by id",
			raw:  `{"id":"u1","primary_email_address_id":"e2","email_addresses":[{"id":"e1","email_address":"first@x.com"},{"id":"e2","email_address":"primary@x.com"}]}`,
			want: "primary@x.com",
		},
		{
			name: "unknown primary falls back to first",
			raw:  `{"id":"u1","primary_email_address_id":"nope","email_addresses":[{"id":"e1","email_address":"first@x.com"}]}`,
			want: "first@x.com",
		},
		{
			name: "no primary id",
			raw:  `{"id":"u1","email_addresses":[{"id":"e1","email_address":"first@x.com"}]}`,
			want: "first@x.com",
		},
		{
			name: "no addresses",
			raw:  `{"id":"u1","email_addresses":[]}`,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeUser(t, tt.raw).PrimaryEmail())
		})
	}
}

func TestFullNameAndAvatar(t *testing.T) {
	u := decodeUser(t, `{"id":"u1","first_name":"  Ada ","last_name":null,"image_url":"","profile_image_url":"https://img/legacy.png"}`)
	require.NotNil(t, u.FullName())
	assert.Equal(t, "Ada", *u.FullName())
	require.NotNil(t, u.AvatarURL())
	assert.Equal(t, "https://img/legacy.png", *u.AvatarURL())

	blank := decodeUser(t, `{"id":"u1","first_name":" ","last_name":""}`)
	assert.Nil(t, blank.FullName())
	assert.Nil(t, blank.AvatarURL())

	both := decodeUser(t, `{"id":"u1","first_name":"Ada","last_name":"Lovelace","image_url":"https://img/new.png","profile_image_url":"https://img/legacy.png"}`)
	assert.Equal(t, "Ada Lovelace", *both.FullName())
	assert.Equal(t, "https://img/new.png", *both.AvatarURL())
}

func TestPublicMetadataAccessors(t *testing.T) {
	u := decodeUser(t, `{"id":"u1","public_metadata":{"isAdmin":true,"adminLevel":2,"country":"CN","locale":"en","preferences":{"theme":"dark","currency":"USD"}}}`)
	assert.True(t, u.IsAdmin())
	assert.Equal(t, 2, u.AdminLevel())
	require.NotNil(t, u.Country())
	assert.Equal(t, "CN", *u.Country())
	assert.Equal(t, "en", u.Locale())
	assert.Equal(t, dbtypes.Preferences{Theme: "dark", Language: "zh", Currency: "USD", Timezone: "Asia/Shanghai"}, u.Preferences())
}

func TestPublicMetadataDefaults(t *testing.T) {
	for _, raw := range []string{
		`{"id":"u1"}`,
		`{"id":"u1","public_metadata":null}`,
		`{"id":"u1","public_metadata":{"adminLevel":-3,"isAdmin":0,"preferences":"broken"}}`,
	} {
		u := decodeUser(t, raw)
		assert.False(t, u.IsAdmin(), raw)
		assert.Equal(t, 0, u.AdminLevel(), raw)
		assert.Nil(t, u.Country(), raw)
		assert.Equal(t, "zh", u.Locale(), raw)
		assert.Equal(t, dbtypes.DefaultPreferences(), u.Preferences(), raw)
	}

	var nilUser *UserData
	assert.Equal(t, "", nilUser.PrimaryEmail())
	assert.False(t, nilUser.IsAdmin())
}

func TestAdminLevelAcceptsNumericString(t *testing.T) {
	u := decodeUser(t, `{"id":"u1","public_metadata":{"adminLevel":"3","isAdmin":"yes"}}`)
	assert.Equal(t, 3, u.AdminLevel())
	assert.True(t, u.IsAdmin())
}

func TestTimestampDecoding(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		raw   string
		valid bool
	}{
		{name: "millis", raw: `1714564800000`, valid: true},
		{name: "numeric string", raw: `"1714564800000"`, valid: true},
		{name: "rfc3339", raw: `"2024-05-01T12:00:00Z"`, valid: true},
		{name: "null", raw: `null`},
		{name: "garbage", raw: `"yesterday"`},
		{name: "object", raw: `{"a":1}`},
		{name: "zero", raw: `0`},
		{name: "float overflow", raw: `1e300`},
		{name: "string overflow", raw: `"1e20"`},
		{name: "past year 9999", raw: `9e15`},
		{name: "nan string", raw: `"NaN"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &ts))
			got, ok := ts.Time()
			assert.Equal(t, tt.valid, ok)
			if tt.valid {
				assert.True(t, want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestOutOfRangeTimestampFallsBackToNow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`9e15`), &ts))
	assert.Equal(t, now, ts.OrNow(now))

	out, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestTimestampOrNowAndPtr(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var unset Timestamp
	assert.Equal(t, now, unset.OrNow(now))
	assert.Nil(t, unset.Ptr())

	set := At(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.NotEqual(t, now, set.OrNow(now))
	require.NotNil(t, set.Ptr())

	out, err := json.Marshal(struct {
		A Timestamp `json:"a"`
		B Timestamp `json:"b"`
	}{A: set})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1704067200000,"b":null}`, string(out))
}

func TestMalformedDateDoesNotFailPayload(t *testing.T) {
	u := decodeUser(t, `{"id":"u1","created_at":"not-a-date","updated_at":1714564800000,"last_sign_in_at":null}`)
	_, ok := u.CreatedAt.Time()
	assert.False(t, ok)
	_, ok = u.UpdatedAt.Time()
	assert.True(t, ok)
}
