package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/trendlens/trendlens-api/api/responses"
	clerkwebhook "github.com/trendlens/trendlens-api/internal/webhooks/clerk"
	pkgerrors "github.com/trendlens/trendlens-api/pkg/errors"
	"github.com/trendlens/trendlens-api/pkg/logger"
)

// DefaultMaxBodyBytes caps webhook bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 512 << 10

type ClerkWebhookService interface {
	Handle(ctx context.Context, body []byte, headers http.Header) (clerkwebhook.Result, error)
}

// ClerkWebhook receives Clerk deliveries. The raw body is passed through
// untouched because the signature covers the exact bytes.
func ClerkWebhook(svc ClerkWebhookService, maxBodyBytes int64, logg *logger.Logger) http.HandlerFunc {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConfiguration, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "webhook body too large").
					WithDetails(map[string]any{"maxBytes": maxBodyBytes}))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		result, err := svc.Handle(ctx, payload, r.Header)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithField(ctx, "result", string(result)), "clerk webhook acknowledged")
		}
		responses.WriteAck(w)
	}
}
