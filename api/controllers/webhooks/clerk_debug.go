package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/trendlens/trendlens-api/api/responses"
	clerkwebhook "github.com/trendlens/trendlens-api/internal/webhooks/clerk"
	pkgerrors "github.com/trendlens/trendlens-api/pkg/errors"
	"github.com/trendlens/trendlens-api/pkg/logger"
)

const debugPreviewLen = 200

type debugReport struct {
	ReceivedAt     time.Time       `json:"receivedAt"`
	Method         string          `json:"method"`
	BodyLength     int             `json:"bodyLength"`
	BodyPreview    string          `json:"bodyPreview"`
	Headers        map[string]bool `json:"signatureHeaders"`
	MissingHeaders []string        `json:"missingHeaders"`
	ValidJSON      bool            `json:"validJson"`
	EventType      string          `json:"eventType"`
	EventID        string          `json:"eventId"`
	SecretSet      bool            `json:"webhookSecretConfigured"`
}

// ClerkWebhookDebug reports what a delivery looked like on arrival without
// verifying or processing it. The secret and signature values are never
// echoed. Mounted outside production only.
func ClerkWebhookDebug(secretConfigured bool, maxBodyBytes int64, logg *logger.Logger) http.HandlerFunc {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if r.Method == http.MethodGet {
			responses.WriteSuccess(w, map[string]string{
				"status": "ok",
				"usage":  "POST a Clerk delivery here to inspect its headers and body",
			})
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		report := debugReport{
			ReceivedAt:     time.Now().UTC(),
			Method:         r.Method,
			BodyLength:     len(body),
			BodyPreview:    preview(body),
			Headers:        map[string]bool{},
			MissingHeaders: clerkwebhook.MissingHeaders(r.Header),
			EventType:      "unknown",
			EventID:        "unknown",
			SecretSet:      secretConfigured,
		}
		for _, h := range []string{clerkwebhook.HeaderID, clerkwebhook.HeaderTimestamp, clerkwebhook.HeaderSignature} {
			report.Headers[h] = r.Header.Get(h) != ""
		}

		var envelope struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		}
		if err := json.Unmarshal(body, &envelope); err == nil {
			report.ValidJSON = true
			if envelope.Type != "" {
				report.EventType = envelope.Type
			}
			if envelope.ID != "" {
				report.EventID = envelope.ID
			}
		}

		if logg != nil {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"event_type":      report.EventType,
				"body_length":     report.BodyLength,
				"missing_headers": report.MissingHeaders,
			}), "clerk webhook debug delivery")
		}
		responses.WriteSuccess(w, report)
	}
}

func preview(body []byte) string {
	if len(body) <= debugPreviewLen {
		return string(body)
	}
	return string(body[:debugPreviewLen])
}
