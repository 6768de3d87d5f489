package clerkwebhook

import (
	"context"
	"fmt"
	"time"

	"github.com/trendlens/trendlens-api/internal/users"
	pkgerrors "github.com/trendlens/trendlens-api/pkg/errors"
	"github.com/trendlens/trendlens-api/pkg/logger"
	"github.com/trendlens/trendlens-api/pkg/metrics"
)

type Result string

const (
	ResultApplied   Result = "applied"
	ResultIgnored   Result = "ignored"
	ResultSwallowed Result = "swallowed"
	ResultFailed    Result = "failed"
	ResultDuplicate Result = "duplicate"
)

// UserStore is the slice of the users service driven by webhook events.
type UserStore interface {
	ApplyCreated(ctx context.Context, p users.Profile) (bool, error)
	ApplyUpdated(ctx context.Context, p users.Profile) error
	ApplyDeleted(ctx context.Context, id string) error
	RecordLogin(ctx context.Context, id string) error
	ApplyPrimaryEmail(ctx context.Context, userID, email string) error
}

type route struct {
	critical bool
	apply    func(ctx context.Context, p Payload) error
}

// Dispatcher routes verified events to their handlers. Critical handlers
// fail the delivery so the provider retries; the rest only log failures.
type Dispatcher struct {
	store   UserStore
	logg    *logger.Logger
	metrics *metrics.WebhookMetrics
	now     func() time.Time
	routes  map[EventType]route
}

type DispatcherParams struct {
	Store   UserStore
	Logger  *logger.Logger
	Metrics *metrics.WebhookMetrics
	Clock   func() time.Time
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user store required")
	}
	d := &Dispatcher{
		store:   params.Store,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     params.Clock,
	}
	if d.logg == nil {
		d.logg = logger.Nop()
	}
	if d.now == nil {
		d.now = time.Now
	}
	d.routes = map[EventType]route{
		EventUserCreated:                   {critical: true, apply: d.userCreated},
		EventUserUpdated:                   {critical: true, apply: d.userUpdated},
		EventUserDeleted:                   {critical: true, apply: d.userDeleted},
		EventEmailCreated:                  {critical: true, apply: d.emailCreated},
		EventSessionCreated:                {apply: d.sessionCreated},
		EventSessionEnded:                  {apply: d.sessionEnded},
		EventOrganizationCreated:           {apply: d.organizationCreated},
		EventOrganizationMembershipCreated: {apply: d.membershipCreated},
		EventOrganizationMembershipDeleted: {apply: d.membershipDeleted},
	}
	return d, nil
}

// Critical reports whether a failure of eventType fails the delivery.
func (d *Dispatcher) Critical(eventType EventType) bool {
	return d.routes[eventType].critical
}

// Dispatch applies one event. The returned error is non-nil only for
// failures of critical handlers.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) (Result, error) {
	if event == nil {
		return ResultFailed, pkgerrors.New(pkgerrors.CodeProcessing, "event is required")
	}
	ctx = d.logg.WithDelivery(ctx, event.DeliveryID, string(event.Type))

	r, ok := d.routes[event.Type]
	if !ok {
		d.logg.Info(ctx, fmt.Sprintf("unhandled clerk event type %s", event.Type))
		d.metrics.IncEvent(string(event.Type), string(ResultIgnored))
		return ResultIgnored, nil
	}

	err := d.apply(ctx, event, r)
	result := ResultApplied
	switch {
	case err == nil:
	case r.critical:
		d.logg.Error(ctx, "clerk event handler failed", err)
		result = ResultFailed
	default:
		d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "clerk event handler failed, continuing")
		result = ResultSwallowed
		err = nil
	}
	d.metrics.IncEvent(string(event.Type), string(result))
	if err != nil {
		// Any critical failure asks svix to retry, whatever its origin.
		if !pkgerrors.IsCode(err, pkgerrors.CodeProcessing) {
			err = pkgerrors.Wrap(pkgerrors.CodeProcessing, err, "event processing failed")
		}
		return result, err
	}
	return result, nil
}

func (d *Dispatcher) apply(ctx context.Context, event *Event, r route) error {
	payload, err := event.Payload()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeProcessing, err, "decode event payload")
	}
	return r.apply(ctx, payload)
}

func (d *Dispatcher) userCreated(ctx context.Context, p Payload) error {
	u := p.(UserPayload)
	_, err := d.store.ApplyCreated(ctx, users.ProfileFromClerk(&u.UserData, d.now()))
	return err
}

func (d *Dispatcher) userUpdated(ctx context.Context, p Payload) error {
	u := p.(UserPayload)
	return d.store.ApplyUpdated(ctx, users.ProfileFromClerk(&u.UserData, d.now()))
}

func (d *Dispatcher) userDeleted(ctx context.Context, p Payload) error {
	return d.store.ApplyDeleted(ctx, p.(DeletedPayload).ID)
}

func (d *Dispatcher) emailCreated(ctx context.Context, p Payload) error {
	e := p.(EmailPayload)
	if e.UserID == "" || e.EmailAddress == "" || !e.Primary {
		d.logg.Info(ctx, "email event is not a primary address change, skipping")
		return nil
	}
	return d.store.ApplyPrimaryEmail(ctx, e.UserID, e.EmailAddress)
}

func (d *Dispatcher) sessionCreated(ctx context.Context, p Payload) error {
	s := p.(SessionPayload)
	ctx = d.logg.WithUserID(ctx, s.UserID)
	if err := d.store.RecordLogin(ctx, s.UserID); err != nil {
		return err
	}
	d.logg.Info(ctx, "login recorded")
	return nil
}

func (d *Dispatcher) sessionEnded(ctx context.Context, p Payload) error {
	s := p.(SessionPayload)
	d.logg.Info(d.logg.WithFields(ctx, map[string]any{"user_id": s.UserID, "session_id": s.ID}), "session ended")
	return nil
}

func (d *Dispatcher) organizationCreated(ctx context.Context, p Payload) error {
	o := p.(OrganizationPayload)
	d.logg.Info(d.logg.WithFields(ctx, map[string]any{
		"organization_id": o.ID,
		"name":            o.Name,
		"created_by":      o.CreatedBy,
	}), "organization created")
	return nil
}

func (d *Dispatcher) membershipCreated(ctx context.Context, p Payload) error {
	m := p.(MembershipPayload)
	d.logg.Info(d.logg.WithFields(ctx, map[string]any{
		"user_id":         m.PublicUserData.UserID,
		"organization_id": m.Organization.ID,
		"role":            m.Role,
	}), "organization membership created")
	return nil
}

func (d *Dispatcher) membershipDeleted(ctx context.Context, p Payload) error {
	m := p.(MembershipPayload)
	d.logg.Info(d.logg.WithFields(ctx, map[string]any{
		"user_id":         m.PublicUserData.UserID,
		"organization_id": m.Organization.ID,
	}), "organization membership deleted")
	return nil
}
