package clerk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	sdk "github.com/clerk/clerk-sdk-go/v2"
	sdkuser "github.com/clerk/clerk-sdk-go/v2/user"
	pkgerrors "github.com/trendlens/trendlens-api/pkg/errors"
)

// Directory reads user profiles from the Clerk Backend API.
type Directory struct {
	users *sdkuser.Client
}

// DirectoryOptions configures the Backend API client.
type DirectoryOptions struct {
	SecretKey  string
	APIURL     string
	HTTPClient *http.Client
}

func NewDirectory(opts DirectoryOptions) (*Directory, error) {
	key := strings.TrimSpace(opts.SecretKey)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "clerk secret key is required")
	}

	cfg := &sdk.ClientConfig{}
	cfg.Key = sdk.String(key)
	if u := strings.TrimSpace(opts.APIURL); u != "" {
		cfg.URL = sdk.String(u)
	}
	cfg.HTTPClient = opts.HTTPClient
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Directory{users: sdkuser.NewClient(cfg)}, nil
}

// GetUser fetches a user and converts it to UserData.
func (d *Directory) GetUser(ctx context.Context, id string) (*UserData, error) {
	if d == nil || d.users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "clerk directory not configured")
	}
	u, err := d.users.Get(ctx, id)
	if err != nil {
		var apiErr *sdk.APIErrorResponse
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "clerk user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch clerk user")
	}
	return fromSDKUser(u)
}

// fromSDKUser round-trips through JSON so UserData's lenient decoding applies
// to API responses the same way it does to webhook payloads.
func fromSDKUser(u *sdk.User) (*UserData, error) {
	raw, err := json.Marshal(u)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode clerk user")
	}
	var data UserData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode clerk user")
	}
	return &data, nil
}
