// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, log level, CORS); everything the
// gift exchange itself needs lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: giftexchange-session)
	SessionDomain string // Cookie domain (blank means current host)
	SessionMaxAge time.Duration

	// Base URL used to build the OAuth redirect
	BaseURL string // e.g., "https://gifts.example.com" or "http://localhost:3000"

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string
	DevLogin           bool // enables POST /auth/dev (dev env only)

	// Group directory and join
	WatchPollInterval      time.Duration // used when change streams are unavailable
	SchemaLookupsPerMinute int

	// Audit logging: "all", "db", "log", or "off"
	AuditLogAuth  string
	AuditLogGroup string

	OAuthStateCleanupInterval time.Duration

	// Database call timeouts (zero keeps the built-in default)
	TimeoutPing   time.Duration
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
}
