package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkgerrors "github.com/trendlens/trendlens-api/pkg/errors"
)

type prefsInput struct {
	Theme string `json:"theme" validate:"omitempty,oneof=light dark"`
}

type patchInput struct {
	FullName    *string     `json:"fullName" validate:"omitempty,max=10"`
	Preferences *prefsInput `json:"preferences"`
}

func jsonRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSONBodyAcceptsValidInput(t *testing.T) {
	var in patchInput
	require.NoError(t, DecodeJSONBody(jsonRequest(`{"fullName":"Ada","preferences":{"theme":"dark"}}`), &in))
	assert.Equal(t, "Ada", *in.FullName)
	assert.Equal(t, "dark", in.Preferences.Theme)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	var in patchInput
	err := DecodeJSONBody(jsonRequest(`{"nickname":"x"}`), &in)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsEmptyBody(t *testing.T) {
	var in patchInput
	err := DecodeJSONBody(jsonRequest(``), &in)
	require.Error(t, err)
	assert.Equal(t, "request body is empty", pkgerrors.As(err).Message())
}

func TestDecodeJSONBodyRejectsTrailingObjects(t *testing.T) {
	var in patchInput
	err := DecodeJSONBody(jsonRequest(`{"fullName":"Ada"}{"fullName":"Eve"}`), &in)
	require.Error(t, err)
	assert.Equal(t, "request body must contain a single JSON object", pkgerrors.As(err).Message())
}

func TestDecodeJSONBodyReportsNestedFields(t *testing.T) {
	var in patchInput
	err := DecodeJSONBody(jsonRequest(`{"preferences":{"theme":"blue"}}`), &in)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be one of: light, dark", details["preferences.theme"])
}

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=25", nil)
	v, err := ParseQueryInt(r, "limit", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, v)

	v, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "limit", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	_, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/?limit=abc", nil), "limit", 10, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/?limit=500", nil), "limit", 10, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
