package clerkwebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	svix "github.com/svix/svix-webhooks/go"
	pkgerrors "github.com/trendlens/trendlens-api/pkg/errors"
	"github.com/trendlens/trendlens-api/pkg/logger"
)

const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

var signatureHeaders = []string{HeaderID, HeaderTimestamp, HeaderSignature}

// MissingHeadersError lists the signature headers absent from a delivery.
type MissingHeadersError struct {
	Missing []string
}

func (e *MissingHeadersError) Error() string {
	return "missing signature headers: " + strings.Join(e.Missing, ", ")
}

// Verifier authenticates Clerk deliveries signed by Svix.
type Verifier struct {
	wh   *svix.Webhook
	logg *logger.Logger
}

// NewVerifier builds a verifier for the endpoint signing secret ("whsec_...").
func NewVerifier(secret string, logg *logger.Logger) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "clerk webhook secret is required")
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "invalid clerk webhook secret")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Verifier{wh: wh, logg: logg}, nil
}

// Verify checks the delivery signature and decodes the event. The body must
// be the raw bytes as received.
func (v *Verifier) Verify(ctx context.Context, body []byte, headers http.Header) (*Event, error) {
	v.logg.Info(v.logg.WithFields(ctx, map[string]any{
		"has_svix_id":        headers.Get(HeaderID) != "",
		"has_svix_timestamp": headers.Get(HeaderTimestamp) != "",
		"has_svix_signature": headers.Get(HeaderSignature) != "",
		"body_length":        len(body),
	}), "clerk webhook received")

	if missing := MissingHeaders(headers); len(missing) > 0 {
		merr := &MissingHeadersError{Missing: missing}
		return nil, pkgerrors.Wrap(pkgerrors.CodeSignature, merr, merr.Error()).
			WithDetails(map[string]any{"missing": missing})
	}

	if err := v.wh.Verify(body, headers); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSignature, err, "signature verification failed")
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProcessing, err, "decode clerk event")
	}
	event.DeliveryID = headers.Get(HeaderID)
	return &event, nil
}

// MissingHeaders returns the signature header names that are absent or blank,
// in canonical order.
func MissingHeaders(headers http.Header) []string {
	var missing []string
	for _, name := range signatureHeaders {
		if strings.TrimSpace(headers.Get(name)) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Signer produces svix headers for a payload. It is used by local tooling and
// tests to build deliveries the Verifier accepts.
type Signer struct {
	wh *svix.Webhook
}

func NewSigner(secret string) (*Signer, error) {
	wh, err := svix.NewWebhook(strings.TrimSpace(secret))
	if err != nil {
		return nil, fmt.Errorf("invalid webhook secret: %w", err)
	}
	return &Signer{wh: wh}, nil
}

// Headers signs body as delivery id at the given time.
func (s *Signer) Headers(id string, at time.Time, body []byte) (http.Header, error) {
	sig, err := s.wh.Sign(id, at, body)
	if err != nil {
		return nil, fmt.Errorf("sign payload: %w", err)
	}
	h := http.Header{}
	h.Set(HeaderID, id)
	h.Set(HeaderTimestamp, strconv.FormatInt(at.Unix(), 10))
	h.Set(HeaderSignature, sig)
	return h, nil
}
