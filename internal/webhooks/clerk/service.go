package clerkwebhook

import (
	"context"
	"errors"
	"net/http"
	"time"

	pkgerrors "github.com/trendlens/trendlens-api/pkg/errors"
	"github.com/trendlens/trendlens-api/pkg/logger"
	"github.com/trendlens/trendlens-api/pkg/metrics"
)

// guardSettleTimeout bounds the confirm or release that follows dispatch.
const guardSettleTimeout = 5 * time.Second

type deliveryGuard interface {
	CheckAndMark(ctx context.Context, deliveryID string) (bool, error)
	Confirm(ctx context.Context, deliveryID string) error
	Release(ctx context.Context, deliveryID string) error
}

type ServiceParams struct {
	Verifier   *Verifier
	Dispatcher *Dispatcher
	// Guard is optional; without it every delivery is dispatched.
	Guard   deliveryGuard
	Metrics *metrics.WebhookMetrics
	Logger  *logger.Logger
}

// Service runs a raw delivery through verification, replay detection and
// dispatch.
type Service struct {
	verifier   *Verifier
	dispatcher *Dispatcher
	guard      deliveryGuard
	metrics    *metrics.WebhookMetrics
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook verifier required")
	}
	if params.Dispatcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook dispatcher required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		verifier:   params.Verifier,
		dispatcher: params.Dispatcher,
		guard:      params.Guard,
		metrics:    params.Metrics,
		logg:       logg,
	}, nil
}

// Handle processes one delivery. A nil error means the delivery should be
// acknowledged.
func (s *Service) Handle(ctx context.Context, body []byte, headers http.Header) (Result, error) {
	event, err := s.verifier.Verify(ctx, body, headers)
	if err != nil {
		s.metrics.IncRejection(rejectionReason(err))
		return ResultFailed, err
	}
	ctx = s.logg.WithDelivery(ctx, event.DeliveryID, string(event.Type))
	s.logg.Info(ctx, "clerk webhook verified")

	guarded := false
	if s.guard != nil {
		seen, err := s.guard.CheckAndMark(ctx, event.DeliveryID)
		switch {
		case err != nil:
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "delivery guard unavailable, processing without replay check")
		case seen:
			s.logg.Info(ctx, "duplicate delivery acknowledged")
			s.metrics.IncEvent(string(event.Type), string(ResultDuplicate))
			return ResultDuplicate, nil
		default:
			guarded = true
		}
	}

	result, err := s.dispatcher.Dispatch(ctx, event)
	if guarded {
		s.settle(ctx, event.DeliveryID, err == nil)
	}
	return result, err
}

// settle confirms or releases the delivery mark. It runs detached from the
// request so a disconnected caller cannot leave a failed delivery marked.
func (s *Service) settle(ctx context.Context, deliveryID string, ok bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), guardSettleTimeout)
	defer cancel()

	if ok {
		if err := s.guard.Confirm(ctx, deliveryID); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "confirm delivery guard")
		}
		return
	}
	if err := s.guard.Release(ctx, deliveryID); err != nil {
		s.logg.Error(ctx, "release delivery guard", err)
	}
}

func rejectionReason(err error) string {
	var missing *MissingHeadersError
	if errors.As(err, &missing) {
		return "missing_headers"
	}
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeSignature):
		return "invalid_signature"
	case pkgerrors.IsCode(err, pkgerrors.CodeProcessing):
		return "malformed_payload"
	default:
		return "unknown"
	}
}
