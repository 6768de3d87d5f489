package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/trendlens/trendlens-api/pkg/clerk"
	"github.com/trendlens/trendlens-api/pkg/db"
	"github.com/trendlens/trendlens-api/pkg/db/models"
	dbtypes "github.com/trendlens/trendlens-api/pkg/db/types"
	"github.com/trendlens/trendlens-api/pkg/enums"
	pkgerrors "github.com/trendlens/trendlens-api/pkg/errors"
	"github.com/trendlens/trendlens-api/pkg/logger"
	"gorm.io/gorm"
)

// activeEmailIndex keeps an email on at most one active user.
const activeEmailIndex = "users_active_email_key"

const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// ProfileSource fetches a user from the identity provider.
type ProfileSource interface {
	GetUser(ctx context.Context, id string) (*clerk.UserData, error)
}

// ServiceParams wires the users service.
type ServiceParams struct {
	Repo      *Repository
	Directory ProfileSource
	Logger    *logger.Logger
	Clock     func() time.Time
}

// Service applies provider-driven and user-driven changes to user records.
type Service struct {
	repo      *Repository
	directory ProfileSource
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repository required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:      params.Repo,
		directory: params.Directory,
		logg:      params.Logger,
		now:       func() time.Time { return clock().UTC() },
	}, nil
}

// ApplyCreated inserts the user unless the id already exists. A second
// create, or one racing another insert, is a no-op.
func (s *Service) ApplyCreated(ctx context.Context, p Profile) (bool, error) {
	if strings.TrimSpace(p.ID) == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	ctx = s.logg.WithUserID(ctx, p.ID)

	existing, err := s.find(ctx, p.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		s.logg.Info(ctx, "user already exists, skipping create")
		return false, nil
	}

	inserted, err := s.repo.InsertIfAbsent(ctx, p.newRecord(s.now()))
	if err != nil {
		return false, writeFailed(err, "insert user")
	}
	if inserted {
		s.logg.Info(ctx, "user created")
	} else {
		s.logg.Info(ctx, "user inserted concurrently, skipping create")
	}
	return inserted, nil
}

// ApplyUpdated overwrites the profile columns and reactivates the record.
// When no row matches, the user is created from the same profile.
func (s *Service) ApplyUpdated(ctx context.Context, p Profile) error {
	if strings.TrimSpace(p.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	ctx = s.logg.WithUserID(ctx, p.ID)

	rows, err := s.repo.UpdateFields(ctx, p.ID, p.updateFields(s.now()))
	if err != nil {
		return writeFailed(err, "update user")
	}
	if rows > 0 {
		s.logg.Info(ctx, "user updated")
		return nil
	}

	s.logg.Info(ctx, "user missing on update, creating")
	_, err = s.ApplyCreated(ctx, p)
	return err
}

// ApplyDeleted soft-deletes the user. Unknown ids are logged and ignored.
func (s *Service) ApplyDeleted(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	ctx = s.logg.WithUserID(ctx, id)

	rows, err := s.repo.Deactivate(ctx, id, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeProcessing, err, "deactivate user")
	}
	if rows == 0 {
		s.logg.Warn(ctx, "user missing on delete, nothing to deactivate")
		return nil
	}
	s.logg.Info(ctx, "user deactivated")
	return nil
}

// RecordLogin sets last_login_at to now.
func (s *Service) RecordLogin(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	rows, err := s.repo.UpdateLastLogin(ctx, id, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeProcessing, err, "update last login")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found for login")
	}
	return nil
}

// ApplyPrimaryEmail replaces the stored email address.
func (s *Service) ApplyPrimaryEmail(ctx context.Context, userID, email string) error {
	if strings.TrimSpace(userID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	ctx = s.logg.WithUserID(ctx, userID)

	rows, err := s.repo.UpdateFields(ctx, userID, map[string]any{
		"email":      strings.TrimSpace(email),
		"updated_at": s.now(),
	})
	if err != nil {
		return writeFailed(err, "update primary email")
	}
	if rows == 0 {
		s.logg.Warn(ctx, "user missing on email update")
		return nil
	}
	s.logg.Info(ctx, "primary email updated")
	return nil
}

// Get loads an existing user or returns a not found error.
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return user, nil
}

// EnsureProvisioned returns the local record, creating it on first access.
// The profile comes from the provider when a directory is configured.
func (s *Service) EnsureProvisioned(ctx context.Context, id string) (*models.User, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	ctx = s.logg.WithUserID(ctx, id)
	profile := bareProfile(id, s.now())
	if s.directory != nil {
		data, err := s.directory.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		profile = ProfileFromClerk(data, s.now())
	} else {
		s.logg.Warn(ctx, "no clerk directory configured, provisioning bare user")
	}

	if _, err := s.ApplyCreated(ctx, profile); err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "user provisioned on first access")
	return s.Get(ctx, id)
}

// SyncFromProvider re-reads the profile from the provider and upserts it.
func (s *Service) SyncFromProvider(ctx context.Context, id string) (*models.User, error) {
	if s.directory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "clerk secret key is not configured")
	}
	data, err := s.directory.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ApplyUpdated(ctx, ProfileFromClerk(data, s.now())); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// ProfileUpdate is a user-initiated change. Nil fields are left alone.
type ProfileUpdate struct {
	FullName    *string
	Preferences *dbtypes.Preferences
}

func validatePreferences(p dbtypes.Preferences) error {
	invalid := map[string]string{}
	if p.Theme != "" && !enums.Theme(p.Theme).IsValid() {
		invalid["theme"] = p.Theme
	}
	if p.Language != "" && !enums.Language(p.Language).IsValid() {
		invalid["language"] = p.Language
	}
	if p.Currency != "" && !enums.Currency(p.Currency).IsValid() {
		invalid["currency"] = p.Currency
	}
	if len(invalid) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported preference value").WithDetails(invalid)
	}
	return nil
}

// UpdateProfile applies a ProfileUpdate, merging preferences over the stored value.
func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*models.User, error) {
	user, err := s.EnsureProvisioned(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{"updated_at": s.now()}
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			fields["full_name"] = nil
		} else {
			fields["full_name"] = name
		}
	}
	if in.Preferences != nil {
		if err := validatePreferences(*in.Preferences); err != nil {
			return nil, err
		}
		fields["preferences"] = user.Preferences.WithDefaults().Merge(*in.Preferences)
	}

	if _, err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update profile")
	}
	return s.Get(ctx, id)
}

// ListRecent returns up to limit users, newest first.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]models.User, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	out, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list users")
	}
	return out, nil
}

// Count returns the number of user rows.
func (s *Service) Count(ctx context.Context) (int64, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count users")
	}
	return n, nil
}

func (s *Service) find(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeProcessing, err, fmt.Sprintf("load user %s", id))
}

// writeFailed classifies a failed write. An email collision stays a
// processing error so the provider redelivers once the other record changes.
func writeFailed(err error, action string) error {
	if db.IsUniqueViolation(err, activeEmailIndex) {
		return pkgerrors.Wrap(pkgerrors.CodeProcessing, err, action+": email belongs to another active user").
			WithDetails(map[string]any{"constraint": activeEmailIndex})
	}
	return pkgerrors.Wrap(pkgerrors.CodeProcessing, err, action)
}
