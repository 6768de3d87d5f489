package analysis

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/trendlens/trendlens-api/api/middleware"
	"github.com/trendlens/trendlens-api/api/responses"
	"github.com/trendlens/trendlens-api/api/validators"
	pkgerrors "github.com/trendlens/trendlens-api/pkg/errors"
	"github.com/trendlens/trendlens-api/pkg/logger"
	"github.com/trendlens/trendlens-api/pkg/n8n"
)

const (
	videoField = "video"
	// multipart framing allowance on top of the file limit
	formOverhead   = 1 << 20
	formMemory     = 32 << 20
	sniffBytes     = 512
	videoStarted   = "Video analysis started successfully"
	youtubeStarted = "YouTube analysis started successfully"
)

// Relay is the subset of the n8n client the analysis endpoints use.
type Relay interface {
	WebhookURL(w n8n.Workflow) (string, error)
	TriggerVideo(ctx context.Context, upload n8n.VideoUpload) (any, error)
	TriggerURL(ctx context.Context, videoURL, userID string) (any, error)
	Status() n8n.Status
}

// Video accepts a multipart upload in field "video" and forwards it to the
// video workflow.
func Video(relay Relay, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = n8n.DefaultMaxVideoBytes
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := middleware.UserIDFromContext(ctx)
		if userID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		if _, err := relay.WebhookURL(n8n.WorkflowVideo); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if r.ContentLength > maxBytes+formOverhead {
			responses.WriteError(ctx, logg, w, n8n.TooLarge(maxBytes))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverhead)
		if err := r.ParseMultipartForm(formMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, n8n.TooLarge(maxBytes))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form"))
			return
		}
		defer func() {
			_ = r.MultipartForm.RemoveAll()
		}()

		file, header, err := r.FormFile(videoField)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no video file provided"))
			return
		}
		defer file.Close()

		head := make([]byte, sniffBytes)
		n, err := io.ReadFull(file, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read video file"))
			return
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rewind video file"))
			return
		}

		contentType := n8n.ResolveVideoContentType(header.Header.Get("Content-Type"), head[:n])
		if err := n8n.ValidateVideoUpload(contentType, header.Size, maxBytes); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"file_name":    header.Filename,
				"file_size":    header.Size,
				"content_type": contentType,
			}), "analysis.video.received")
		}

		data, err := relay.TriggerVideo(ctx, n8n.VideoUpload{
			File:        file,
			Filename:    header.Filename,
			ContentType: contentType,
			UserID:      userID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteRelay(w, videoStarted, data)
	}
}

type youtubeRequest struct {
	URL        string `json:"url"`
	YouTubeURL string `json:"youtubeUrl"`
}

func (r youtubeRequest) target() string {
	if u := strings.TrimSpace(r.URL); u != "" {
		return u
	}
	return strings.TrimSpace(r.YouTubeURL)
}

// YouTube accepts {url} (or the older {youtubeUrl}) and forwards it to the
// URL workflow.
func YouTube(relay Relay, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := middleware.UserIDFromContext(ctx)
		if userID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		if _, err := relay.WebhookURL(n8n.WorkflowURL); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body youtubeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		videoURL, err := n8n.ValidateVideoURL(body.target())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithField(ctx, "video_url", videoURL), "analysis.youtube.received")
		}

		data, err := relay.TriggerURL(ctx, videoURL, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteRelay(w, youtubeStarted, data)
	}
}

// Status reports which relay settings are configured.
func Status(relay Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, relay.Status())
	}
}
