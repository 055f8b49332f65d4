// Package config centralizes how the assistant reads environment variables
// and exposes them as strongly typed values. A local .env file is honored
// when present.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents runtime configuration shared by the CLI, the gateway,
// and the worker.
type Config struct {
	Address string

	// External clinical API.
	APIBaseURL      string
	CognitoRegion   string
	CognitoClientID string

	// Workflow policy.
	DefaultLanguage string
	UploadVariant   string
	MaxAudioBytes   int64
	PollMaxAttempts int
	PollInterval    time.Duration

	// Audio normalization.
	FFmpegPath   string
	AudioBitrate string

	// Persistence and queue.
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Clinic object storage.
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3UseSSL     bool
	S3Region     string
	RawBucket    string
	ExportBucket string

	// Signed download links for exported documents.
	SigningSecret []byte
	SignedURLTTL  time.Duration

	ProcessingPool int

	// Service account used by the worker to call the remote API.
	ServiceEmail    string
	ServicePassword string

	// Clinician letterhead printed on exported reports.
	DoctorName           string
	DoctorSpecialization string
	DoctorContact        string
	DoctorEmail          string
}

const (
	defaultAddress      = ":8080"
	defaultMaxAudio     = 100 << 20 // 100 MiB
	defaultBitrate      = "64k"
	defaultLanguage     = "en"
	defaultVariant      = UploadVariantPresigned
	defaultPollAttempts = 144
	defaultPollInterval = 5 * time.Second
	defaultSignedTTL    = 5 * time.Minute
	defaultWorkerCount  = 2
	defaultRawBucket    = "visits-raw"
	defaultExportBucket = "visits-export"
)

// Upload strategy selected once per deployment.
const (
	UploadVariantPresigned = "presigned"
	UploadVariantInline    = "inline"
)

// Load reads configuration from environment variables falling back to
// defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Address:         readEnv("DOCAI_ADDRESS", defaultAddress),
		APIBaseURL:      readEnv("DOCAI_API_URL", ""),
		CognitoRegion:   readEnv("DOCAI_COGNITO_REGION", "eu-central-1"),
		CognitoClientID: readEnv("DOCAI_COGNITO_CLIENT_ID", ""),
		DefaultLanguage: readEnv("DOCAI_LANGUAGE", defaultLanguage),
		UploadVariant:   readEnv("DOCAI_UPLOAD_VARIANT", defaultVariant),
		MaxAudioBytes:   parseInt64("DOCAI_MAX_AUDIO_BYTES", defaultMaxAudio),
		PollMaxAttempts: parseInt("DOCAI_POLL_MAX_ATTEMPTS", defaultPollAttempts),
		PollInterval:    parseDuration("DOCAI_POLL_INTERVAL", defaultPollInterval),
		FFmpegPath:      readEnv("DOCAI_FFMPEG_PATH", "ffmpeg"),
		AudioBitrate:    readEnv("DOCAI_AUDIO_BITRATE", defaultBitrate),
		DatabaseURL:     readEnv("DOCAI_DATABASE_URL", ""),
		RedisAddr:       readEnv("DOCAI_REDIS_ADDR", "localhost:6379"),
		RedisPassword:   readEnv("DOCAI_REDIS_PASSWORD", ""),
		RedisDB:         parseInt("DOCAI_REDIS_DB", 0),
		S3Endpoint:      readEnv("DOCAI_S3_ENDPOINT", "localhost:9000"),
		S3AccessKey:     readEnv("DOCAI_S3_ACCESS_KEY", ""),
		S3SecretKey:     readEnv("DOCAI_S3_SECRET_KEY", ""),
		S3UseSSL:        parseBool("DOCAI_S3_USE_SSL", false),
		S3Region:        readEnv("DOCAI_S3_REGION", "us-east-1"),
		RawBucket:       readEnv("DOCAI_RAW_BUCKET", defaultRawBucket),
		ExportBucket:    readEnv("DOCAI_EXPORT_BUCKET", defaultExportBucket),
		SigningSecret:   parseSecret("DOCAI_SIGNING_SECRET"),
		SignedURLTTL:    parseDuration("DOCAI_SIGNED_TTL", defaultSignedTTL),
		ProcessingPool:  parseInt("DOCAI_WORKERS", defaultWorkerCount),
		ServiceEmail:    readEnv("DOCAI_SERVICE_EMAIL", ""),
		ServicePassword: readEnv("DOCAI_SERVICE_PASSWORD", ""),

		DoctorName:           readEnv("DOCAI_DOCTOR_NAME", "Dr. Naheed Khan"),
		DoctorSpecialization: readEnv("DOCAI_DOCTOR_SPECIALIZATION", "Cardiology"),
		DoctorContact:        readEnv("DOCAI_DOCTOR_CONTACT", "123-456-7890"),
		DoctorEmail:          readEnv("DOCAI_DOCTOR_EMAIL", "doctor@example.com"),
	}
	if cfg.UploadVariant != UploadVariantPresigned && cfg.UploadVariant != UploadVariantInline {
		return nil, fmt.Errorf("invalid upload variant %q", cfg.UploadVariant)
	}
	if cfg.SigningSecret == nil {
		cfg.SigningSecret = randomSecret()
	}
	if cfg.ProcessingPool <= 0 {
		cfg.ProcessingPool = defaultWorkerCount
	}
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = defaultMaxAudio
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = defaultPollAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = defaultSignedTTL
	}
	return cfg, nil
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseSecret(key string) []byte {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return []byte(v)
	}
	return nil
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return []byte(hex.EncodeToString([]byte("fallbacksecret")))
	}
	return buf
}

// NormalizeLanguage restricts the language code to the codes the remote
// service supports.
func NormalizeLanguage(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "it", "italian":
		return "it"
	default:
		return "en"
	}
}
