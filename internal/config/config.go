package config

import (
	"context"
	"time"
)

// ListenerConfig holds the network/TLS settings for a single listener (main or management).
type ListenerConfig struct {
	Port              int
	EnablePlainText   bool
	EnableTLS         bool
	TLSCertFile       string
	TLSKeyFile        string
	ReadHeaderTimeout time.Duration
}

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

const (
	ModeProd    = "prod"
	ModeTesting = "testing"
)

// Config holds all configuration for the chat service.
type Config struct {
	// Mode controls security behavior: "prod" (default) or "testing".
	// In testing mode, the X-User-ID header is accepted as the caller identity.
	Mode string

	// Database
	DBURL string

	// Datastore backend type: "postgres" or "sqlite".
	DatastoreType string

	// Run datastore migrations on startup.
	DatastoreMigrateAtStart bool

	// Cache backend type: "redis" or "none".
	CacheType string

	// Redis
	RedisURL string

	// TTL for cached conversation membership snapshots.
	CacheSnapshotTTL time.Duration

	// OIDC
	OIDCIssuer       string
	OIDCDiscoveryURL string // internal URL for OIDC discovery (when the issuer URL is not reachable)

	// Security
	// APIKeys maps API key values to user IDs (CHAT_SERVICE_API_KEYS_<USER_ID>=<key>).
	APIKeys       map[string]string
	AdminOIDCRole string
	AdminUsers    string

	// Encryption
	// EncryptionProviders is a comma-separated provider list; the first entry
	// encrypts new data, the rest participate in decryption routing.
	EncryptionProviders string
	// EncryptionKey is a comma-separated list of AES keys. The first key is
	// the primary key-wrapping key; subsequent keys are legacy (unwrap-only).
	// Per-conversation data keys are wrapped under a key derived from these.
	EncryptionKey string

	// MetricsLabels is a comma-separated list of key=value pairs added as
	// constant labels to all Prometheus metrics. Values support ${VAR} expansion.
	MetricsLabels string

	// Server
	Listener           ListenerConfig
	ManagementListener ListenerConfig
	// ManagementListenerEnabled is true when --management-port (or
	// CHAT_SERVICE_MANAGEMENT_PORT) was explicitly provided. When false,
	// management endpoints are served on the main port.
	ManagementListenerEnabled bool
	// ManagementAccessLog enables HTTP access logging for management endpoints
	// (/health, /ready, /metrics). Disabled by default to suppress probe noise.
	ManagementAccessLog bool
	CORSEnabled         bool
	CORSOrigins         string

	// Body size limit (bytes)
	MaxBodySize int64

	// Graceful shutdown drain timeout (seconds)
	DrainTimeout int

	// DB pool
	DBMaxOpenConns int
	DBMaxIdleConns int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Mode:                    ModeProd,
		DatastoreType:           "postgres",
		DatastoreMigrateAtStart: true,
		CacheType:               "none",
		CacheSnapshotTTL:        10 * time.Minute,
		AdminOIDCRole:           "admin",
		EncryptionProviders:     "aesgcm",
		Listener: ListenerConfig{
			Port:              8080,
			EnablePlainText:   true,
			EnableTLS:         true,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ManagementListener: ListenerConfig{
			EnablePlainText: true,
			EnableTLS:       true,
		},
		MaxBodySize:    1 * 1024 * 1024,
		DrainTimeout:   30,
		DBMaxOpenConns: 25,
		DBMaxIdleConns: 5,
	}
}
