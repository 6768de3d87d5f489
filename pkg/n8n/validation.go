package n8n

import (
	"fmt"
	"mime"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	pkgerrors "github.com/trendlens/trendlens-api/pkg/errors"
)

// DefaultMaxVideoBytes is the upload ceiling when none is configured.
const DefaultMaxVideoBytes int64 = 100 << 20

var allowedVideoTypes = []string{"video/mp4", "video/mpeg", "video/quicktime", "video/x-msvideo"}

var youtubeURLPattern = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com|youtu\.be)/.+$`)

// AllowedVideoTypes returns the accepted upload content types.
func AllowedVideoTypes() []string {
	return append([]string(nil), allowedVideoTypes...)
}

// ResolveVideoContentType normalizes the declared type. When the client sent
// nothing useful, the type is sniffed from the first bytes of the file.
func ResolveVideoContentType(declared string, head []byte) string {
	mediaType := normalizeMediaType(declared)
	if mediaType != "" && mediaType != "application/octet-stream" {
		return mediaType
	}
	if len(head) == 0 {
		return mediaType
	}
	return normalizeMediaType(mimetype.Detect(head).String())
}

// ValidateVideoUpload checks the content type and size against the limits.
func ValidateVideoUpload(contentType string, size, limit int64) error {
	if limit <= 0 {
		limit = DefaultMaxVideoBytes
	}
	if size <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "no video file provided")
	}
	if !isAllowedVideoType(contentType) {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("invalid file type: only %s are allowed", humanReadableList(allowedVideoTypes))).
			WithDetails(map[string]any{"contentType": contentType, "allowed": allowedVideoTypes})
	}
	if size > limit {
		return TooLarge(limit)
	}
	return nil
}

// TooLarge builds the error returned for uploads over limit.
func TooLarge(limit int64) error {
	return pkgerrors.New(pkgerrors.CodeValidation,
		fmt.Sprintf("file too large: maximum size is %dMB", limit>>20)).
		WithDetails(map[string]any{"maxBytes": limit})
}

// ValidateVideoURL accepts youtube.com and youtu.be links.
func ValidateVideoURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "no video url provided")
	}
	if !youtubeURLPattern.MatchString(clean) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid YouTube URL format")
	}
	return clean, nil
}

func isAllowedVideoType(contentType string) bool {
	mediaType := normalizeMediaType(contentType)
	for _, allowed := range allowedVideoTypes {
		if mediaType == allowed {
			return true
		}
	}
	return false
}

func normalizeMediaType(value string) string {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(clean)
	if err != nil {
		return strings.ToLower(clean)
	}
	return strings.ToLower(mediaType)
}

func humanReadableList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return fmt.Sprintf("%s or %s", items[0], items[1])
	default:
		return fmt.Sprintf("%s, or %s", strings.Join(items[:len(items)-1], ", "), items[len(items)-1])
	}
}
