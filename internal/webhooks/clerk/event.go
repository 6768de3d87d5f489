package clerkwebhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/trendlens/trendlens-api/pkg/clerk"
)

type EventType string

const (
	EventUserCreated                   EventType = "user.created"
	EventUserUpdated                   EventType = "user.updated"
	EventUserDeleted                   EventType = "user.deleted"
	EventSessionCreated                EventType = "session.created"
	EventSessionEnded                  EventType = "session.ended"
	EventEmailCreated                  EventType = "email.created"
	EventOrganizationCreated           EventType = "organization.created"
	EventOrganizationMembershipCreated EventType = "organizationMembership.created"
	EventOrganizationMembershipDeleted EventType = "organizationMembership.deleted"
)

// Event is one Clerk webhook delivery.
type Event struct {
	Type       EventType       `json:"type"`
	Object     string          `json:"object"`
	InstanceID string          `json:"instance_id,omitempty"`
	Timestamp  clerk.Timestamp `json:"timestamp"`
	Data       json.RawMessage `json:"data"`

	// DeliveryID is the svix-id header, stable across redeliveries.
	DeliveryID string `json:"-"`
}

// Payload is the decoded data of a known event type.
type Payload interface {
	payload()
}

type UserPayload struct {
	clerk.UserData
}

type DeletedPayload struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type SessionPayload struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Status       string          `json:"status"`
	LastActiveAt clerk.Timestamp `json:"last_active_at"`
}

// EmailPayload carries the address, owner and primary flag of an email event.
// Clerk has nested these under "object" in some payload versions.
type EmailPayload struct {
	ID           string
	UserID       string
	EmailAddress string
	Primary      bool
}

type OrganizationPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	CreatedBy string `json:"created_by"`
}

type MembershipPayload struct {
	ID           string `json:"id"`
	Role         string `json:"role"`
	Organization struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"organization"`
	PublicUserData struct {
		UserID     string `json:"user_id"`
		Identifier string `json:"identifier"`
	} `json:"public_user_data"`
}

func (UserPayload) payload()         {}
func (DeletedPayload) payload()      {}
func (SessionPayload) payload()      {}
func (EmailPayload) payload()        {}
func (OrganizationPayload) payload() {}
func (MembershipPayload) payload()   {}

// Payload decodes Data according to Type. Unknown types return (nil, nil).
func (e *Event) Payload() (Payload, error) {
	var (
		out Payload
		err error
	)
	switch e.Type {
	case EventUserCreated, EventUserUpdated:
		var p UserPayload
		err = decodeData(e.Data, &p)
		out = p
	case EventUserDeleted:
		var p DeletedPayload
		err = decodeData(e.Data, &p)
		out = p
	case EventSessionCreated, EventSessionEnded:
		var p SessionPayload
		err = decodeData(e.Data, &p)
		out = p
	case EventEmailCreated:
		var p EmailPayload
		p, err = decodeEmail(e.Data)
		out = p
	case EventOrganizationCreated:
		var p OrganizationPayload
		err = decodeData(e.Data, &p)
		out = p
	case EventOrganizationMembershipCreated, EventOrganizationMembershipDeleted:
		var p MembershipPayload
		err = decodeData(e.Data, &p)
		out = p
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return out, nil
}

func decodeData(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("event data is empty")
	}
	return json.Unmarshal(raw, dst)
}

type emailFields struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	EmailAddress   string `json:"email_address"`
	ToEmailAddress string `json:"to_email_address"`
	Primary        *bool  `json:"primary"`
}

type emailEnvelope struct {
	emailFields
	Object json.RawMessage `json:"object"`
}

func decodeEmail(raw json.RawMessage) (EmailPayload, error) {
	var env emailEnvelope
	if err := decodeData(raw, &env); err != nil {
		return EmailPayload{}, err
	}
	var nested emailFields
	if len(env.Object) > 0 && env.Object[0] == '{' {
		if err := json.Unmarshal(env.Object, &nested); err != nil {
			return EmailPayload{}, err
		}
	}

	out := EmailPayload{
		ID:           firstNonEmpty(env.ID, nested.ID),
		UserID:       firstNonEmpty(nested.UserID, env.UserID),
		EmailAddress: firstNonEmpty(env.EmailAddress, nested.EmailAddress, env.ToEmailAddress, nested.ToEmailAddress),
	}
	switch {
	case nested.Primary != nil:
		out.Primary = *nested.Primary
	case env.Primary != nil:
		out.Primary = *env.Primary
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
