package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/trendlens/trendlens-api/pkg/config"
	pkgerrors "github.com/trendlens/trendlens-api/pkg/errors"
	"github.com/trendlens/trendlens-api/pkg/logger"
	"github.com/trendlens/trendlens-api/pkg/metrics"
)

// Workflow identifies which configured n8n webhook a trigger targets.
type Workflow string

const (
	WorkflowVideo Workflow = "video"
	WorkflowURL   Workflow = "url"
)

const (
	fieldVideo     = "Video"
	fieldUserID    = "userId"
	fieldTimestamp = "timestamp"

	apiKeyHeader     = "X-N8N-API-KEY"
	maxResponseBytes = 10 << 20
	tokenTTL         = 5 * time.Minute
)

// Client triggers n8n workflows over their webhook URLs.
type Client struct {
	cfg     config.N8NConfig
	http    *http.Client
	metrics *metrics.RelayMetrics
	logg    *logger.Logger
	now     func() time.Time
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithMetrics(m *metrics.RelayMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.logg = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient never fails. Missing settings surface as configuration errors on
// the first trigger so the API can boot without n8n.
func NewClient(cfg config.N8NConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// VideoUpload is a validated file ready to forward.
type VideoUpload struct {
	File        io.Reader
	Filename    string
	ContentType string
	UserID      string
}

// TriggerVideo forwards a file as multipart fields Video, userId and timestamp.
func (c *Client) TriggerVideo(ctx context.Context, upload VideoUpload) (any, error) {
	target, err := c.WebhookURL(WorkflowVideo)
	if err != nil {
		return nil, err
	}
	if upload.File == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no video file provided")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	timestamp := c.timestamp()

	done := make(chan struct{})
	go func() {
		defer close(done)
		pw.CloseWithError(writeVideoForm(mw, upload, timestamp))
	}()
	// The writer reads upload.File, so it must be gone before we return.
	finish := func(err error) {
		_ = pr.CloseWithError(err)
		<-done
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, pr)
	if err != nil {
		finish(err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build n8n request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	data, err := c.do(ctx, WorkflowVideo, req, upload.UserID)
	finish(nil)
	return data, err
}

func writeVideoForm(mw *multipart.Writer, upload VideoUpload, timestamp string) error {
	filename := upload.Filename
	if filename == "" {
		filename = "video"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldVideo, filename))
	header.Set("Content-Type", upload.ContentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, upload.File); err != nil {
		return err
	}
	if err := mw.WriteField(fieldUserID, upload.UserID); err != nil {
		return err
	}
	if err := mw.WriteField(fieldTimestamp, timestamp); err != nil {
		return err
	}
	return mw.Close()
}

type urlTrigger struct {
	VideoURL  string `json:"videoUrl"`
	UserID    string `json:"userId"`
	Timestamp string `json:"timestamp"`
}

// TriggerURL forwards a video URL as JSON {videoUrl, userId, timestamp}.
func (c *Client) TriggerURL(ctx context.Context, videoURL, userID string) (any, error) {
	target, err := c.WebhookURL(WorkflowURL)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(urlTrigger{VideoURL: videoURL, UserID: userID, Timestamp: c.timestamp()})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode n8n payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build n8n request")
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(ctx, WorkflowURL, req, userID)
}

// WebhookURL returns <base>/webhook/<workflowID> or a configuration error.
func (c *Client) WebhookURL(w Workflow) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(c.cfg.BaseURL), "/")
	if base == "" {
		return "", pkgerrors.New(pkgerrors.CodeConfiguration, "n8n webhook url is not configured")
	}
	id := strings.TrimSpace(c.workflowID(w))
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeConfiguration, fmt.Sprintf("n8n %s workflow id is not configured", w))
	}
	return base + "/webhook/" + url.PathEscape(id), nil
}

func (c *Client) workflowID(w Workflow) string {
	switch w {
	case WorkflowVideo:
		return c.cfg.VideoWorkflowID
	case WorkflowURL:
		return c.cfg.URLWorkflowID
	default:
		return ""
	}
}

func (c *Client) do(ctx context.Context, w Workflow, req *http.Request, userID string) (any, error) {
	if err := c.authorize(req, userID); err != nil {
		return nil, err
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(w, "error", start)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, ctxErr, "n8n webhook failed: request canceled")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "n8n webhook failed: unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.observe(w, "error", start)
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "n8n webhook failed: reading response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe(w, "rejected", start)
		if c.logg != nil {
			fields := map[string]any{"workflow": string(w), "status": resp.StatusCode}
			c.logg.Warn(c.logg.WithFields(ctx, fields), "n8n webhook returned non-2xx")
		}
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "n8n webhook failed: "+statusText(resp)).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	c.observe(w, "success", start)
	return decodeBody(raw), nil
}

func (c *Client) observe(w Workflow, result string, start time.Time) {
	c.metrics.Observe(string(w), result, c.now().Sub(start))
}

func (c *Client) authorize(req *http.Request, userID string) error {
	switch {
	case c.cfg.JWTSecret != "":
		token, err := c.mintToken(userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sign n8n request")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case c.cfg.APIKey != "":
		req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	}
	return nil
}

func (c *Client) mintToken(userID string) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Issuer:    c.cfg.JWTIssuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

func (c *Client) timestamp() string {
	return c.now().UTC().Format(time.RFC3339Nano)
}

// decodeBody returns parsed JSON when possible. Non-JSON bodies come back as a
// string and empty bodies as nil.
func decodeBody(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	var out any
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return string(trimmed)
	}
	return out
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}

// Status reports which relay settings are present. Values are never exposed.
type Status struct {
	BaseURLConfigured       bool   `json:"baseUrlConfigured"`
	VideoWorkflowConfigured bool   `json:"videoWorkflowConfigured"`
	URLWorkflowConfigured   bool   `json:"urlWorkflowConfigured"`
	AuthMode                string `json:"authMode"`
	Ready                   bool   `json:"ready"`
}

func (c *Client) Status() Status {
	s := Status{
		BaseURLConfigured:       strings.TrimSpace(c.cfg.BaseURL) != "",
		VideoWorkflowConfigured: strings.TrimSpace(c.cfg.VideoWorkflowID) != "",
		URLWorkflowConfigured:   strings.TrimSpace(c.cfg.URLWorkflowID) != "",
		AuthMode:                "none",
	}
	switch {
	case c.cfg.JWTSecret != "":
		s.AuthMode = "jwt"
	case c.cfg.APIKey != "":
		s.AuthMode = "api_key"
	}
	s.Ready = s.BaseURLConfigured && s.VideoWorkflowConfigured && s.URLWorkflowConfigured
	return s
}
