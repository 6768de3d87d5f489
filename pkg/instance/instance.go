package instance

import "os"

// GetID names the running process for log fields. TRENDLENS_INSTANCE_ID wins,
// then the platform dyno name, then the host name.
func GetID() string {
	for _, key := range []string{"TRENDLENS_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
