// Package app holds process-level configuration for the server binary,
// loaded from the environment the same way the teacher's config layer does:
// plain os.Getenv reads with typed fallbacks, no external config library.
package app

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr        string
	MongoURI        string
	MongoDatabase   string
	LogLevel        string
	LogFormat       string
	AuthToken       string

	FFMPEGPath  string
	FFProbePath string

	ConversionPreset       string
	ConversionCRF          int
	ConversionAudioBitrate string
	ConversionAdaptiveCRF  bool

	PrepCacheMaxEntries int
	StreamPrefix        string

	SessionIdleTimeoutSecs int64

	WebhookTargets []WebhookTarget

	CORSAllowedOrigins []string
}

// WebhookTarget is one downstream media-server notification endpoint,
// parsed from NOTIFY_WEBHOOKS as "name=url" pairs separated by commas.
type WebhookTarget struct {
	Name string
	URL  string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DB", "mediavault"),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", "text")),
		AuthToken:     getEnv("AUTH_TOKEN", ""),

		FFMPEGPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFProbePath: getEnv("FFPROBE_PATH", "ffprobe"),

		ConversionPreset:       getEnv("CONVERSION_PRESET", "veryfast"),
		ConversionCRF:          int(getEnvInt64("CONVERSION_CRF", 23)),
		ConversionAudioBitrate: getEnv("CONVERSION_AUDIO_BITRATE", "128k"),
		ConversionAdaptiveCRF:  getEnvBool("CONVERSION_ADAPTIVE_CRF", false),

		PrepCacheMaxEntries: int(getEnvInt64("PREPCACHE_MAX_ENTRIES", 256)),
		StreamPrefix:        getEnv("STREAM_PREFIX", "api/stream"),

		SessionIdleTimeoutSecs: getEnvInt64("SESSION_IDLE_TIMEOUT_SECS", 1800),

		WebhookTargets: parseWebhookTargets(getEnv("NOTIFY_WEBHOOKS", "")),

		CORSAllowedOrigins: parseCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

func parseWebhookTargets(s string) []WebhookTarget {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []WebhookTarget
	for _, pair := range strings.Split(s, ",") {
		name, url, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" || url == "" {
			continue
		}
		out = append(out, WebhookTarget{Name: name, URL: url})
	}
	return out
}

func parseCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
