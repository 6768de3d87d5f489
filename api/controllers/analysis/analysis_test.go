package analysis

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trendlens/trendlens-api/api/middleware"
	"github.com/trendlens/trendlens-api/pkg/config"
	"github.com/trendlens/trendlens-api/pkg/n8n"
)

type upstream struct {
	server *httptest.Server
	hits   atomic.Int32
	last   *http.Request
	body   []byte
}

func newUpstream(t *testing.T, status int, reply string) *upstream {
	t.Helper()
	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		u.last = r
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			_ = r.ParseMultipartForm(1 << 20)
		} else {
			u.body, _ = io.ReadAll(r.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(u.server.Close)
	return u
}

func relayFor(u *upstream) *n8n.Client {
	return n8n.NewClient(config.N8NConfig{
		BaseURL:         u.server.URL,
		VideoWorkflowID: "video-wf",
		URLWorkflowID:   "url-wf",
	})
}

func authed(r *http.Request) *http.Request {
	return r.WithContext(middleware.WithUserID(r.Context(), "user_1"))
}

func videoRequest(t *testing.T, contentType string, payload []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="video"; filename="clip.mp4"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/video", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return authed(req)
}

type relayEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestVideoForwardsUpload(t *testing.T) {
	up := newUpstream(t, http.StatusOK, `{"jobId":"j1"}`)
	rec := httptest.NewRecorder()
	Video(relayFor(up), 0, nil).ServeHTTP(rec, videoRequest(t, "video/mp4", []byte("fake-video-bytes")))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var env relayEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "Video analysis started successfully", env.Message)
	assert.Equal(t, map[string]any{"jobId": "j1"}, env.Data)

	require.EqualValues(t, 1, up.hits.Load())
	assert.Equal(t, "/webhook/video-wf", up.last.URL.Path)
	assert.Equal(t, "user_1", up.last.MultipartForm.Value["userId"][0])
	require.Len(t, up.last.MultipartForm.File["Video"], 1)
}

func TestVideoRejectsWrongTypeWithoutForwarding(t *testing.T) {
	up := newUpstream(t, http.StatusOK, `{}`)
	rec := httptest.NewRecorder()
	Video(relayFor(up), 0, nil).ServeHTTP(rec, videoRequest(t, "text/plain", []byte("hello")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Message, "invalid file type")
	assert.Zero(t, up.hits.Load())
}

func TestVideoRejectsOversizedFile(t *testing.T) {
	up := newUpstream(t, http.StatusOK, `{}`)
	rec := httptest.NewRecorder()
	Video(relayFor(up), 8, nil).ServeHTTP(rec, videoRequest(t, "video/mp4", []byte("more than eight bytes")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file too large")
	assert.Zero(t, up.hits.Load())
}

func TestVideoRejectsDeclaredLengthOverLimit(t *testing.T) {
	up := newUpstream(t, http.StatusOK, `{}`)
	req := videoRequest(t, "video/mp4", []byte("x"))
	req.ContentLength = 10 << 30
	rec := httptest.NewRecorder()
	Video(relayFor(up), 0, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, up.hits.Load())
}

func TestVideoMissingFile(t *testing.T) {
	up := newUpstream(t, http.StatusOK, `{}`)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/video", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	Video(relayFor(up), 0, nil).ServeHTTP(rec, authed(req))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no video file provided")
}

func TestRelayNotConfigured(t *testing.T) {
	relay := n8n.NewClient(config.N8NConfig{})

	rec := httptest.NewRecorder()
	Video(relay, 0, nil).ServeHTTP(rec, videoRequest(t, "video/mp4", []byte("x")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "CONFIGURATION_ERROR")

	rec = httptest.NewRecorder()
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/analysis/youtube", strings.NewReader(`{"url":"https://youtu.be/x"}`)))
	YouTube(relay, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "CONFIGURATION_ERROR")
}

func TestYouTubeForwardsURL(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "url field", body: `{"url":"https://www.youtube.com/watch?v=abc"}`},
		{name: "legacy field", body: `{"youtubeUrl":"https://www.youtube.com/watch?v=abc"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newUpstream(t, http.StatusOK, `{"queued":true}`)
			req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/analysis/youtube", strings.NewReader(tt.body)))
			rec := httptest.NewRecorder()
			YouTube(relayFor(up), nil).ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var env relayEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, "YouTube analysis started successfully", env.Message)

			var sent map[string]string
			require.NoError(t, json.Unmarshal(up.body, &sent))
			assert.Equal(t, "https://www.youtube.com/watch?v=abc", sent["videoUrl"])
			assert.Equal(t, "user_1", sent["userId"])
			assert.NotEmpty(t, sent["timestamp"])
		})
	}
}

func TestYouTubeRejectsBadURL(t *testing.T) {
	up := newUpstream(t, http.StatusOK, `{}`)
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/analysis/youtube", strings.NewReader(`{"url":"https://vimeo.com/1"}`)))
	rec := httptest.NewRecorder()
	YouTube(relayFor(up), nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid YouTube URL format")
	assert.Zero(t, up.hits.Load())
}

func TestYouTubeUpstreamFailure(t *testing.T) {
	up := newUpstream(t, http.StatusBadGateway, `oops`)
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/analysis/youtube", strings.NewReader(`{"url":"youtu.be/abc"}`)))
	rec := httptest.NewRecorder()
	YouTube(relayFor(up), nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "UPSTREAM_ERROR", env.Error.Code)
	assert.Equal(t, "n8n webhook failed: Bad Gateway", env.Error.Message)
}

func TestStatusReportsConfiguration(t *testing.T) {
	relay := n8n.NewClient(config.N8NConfig{BaseURL: "https://n8n.example.com", APIKey: "k"})
	rec := httptest.NewRecorder()
	Status(relay).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analysis/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data n8n.Status `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Data.BaseURLConfigured)
	assert.False(t, env.Data.Ready)
	assert.Equal(t, "api_key", env.Data.AuthMode)
	assert.NotContains(t, rec.Body.String(), `"k"`)
}
