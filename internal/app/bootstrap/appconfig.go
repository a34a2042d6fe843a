// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds blog-specific configuration for this WAFFLE app.
//
// Values come from config files, STRATABLOG_* environment variables, or
// command-line flags (see LoadConfig). Framework settings such as ports,
// TLS, log level and CORS live in WAFFLE's CoreConfig instead.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session cookie configuration
	SessionKey    string // signing key (must be strong in production)
	SessionName   string
	SessionDomain string // blank means current host
	SessionMaxAge time.Duration

	// Login rate limiting
	RateLimitEnabled       bool
	RateLimitLoginAttempts int
	RateLimitLoginWindow   time.Duration
	RateLimitLoginLockout  time.Duration

	CSRFKey string // 32+ chars in production

	// Featured image storage
	StorageType      string // "local" or "s3"
	StorageLocalPath string
	StorageLocalURL  string

	// S3/CloudFront (StorageType "s3" only)
	StorageS3Region    string
	StorageS3Bucket    string
	StorageS3Prefix    string
	StorageCFURL       string
	StorageCFKeyPairID string
	StorageCFKeyPath   string

	// Reply notification mail
	MailEnabled  bool
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string
	MailUseSSL   bool
	MailTimeout  time.Duration

	// Public site identity, used in notification mail
	BaseURL  string
	SiteName string

	// Audit logging: "all" (MongoDB + zap), "db", "log" or "off"
	AuditLogAuth    string
	AuditLogContent string
	AuditLogAdmin   string
	AuditRetention  time.Duration // 0 keeps audit events forever

	// Admin provisioning at startup
	AdminPassword string

	PostsPerPage int

	// Per-operation deadlines; zero keeps the built-in default
	TimeoutPing   time.Duration
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
}
