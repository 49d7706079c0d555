// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables (TRIPSYNC_*), configuration
// files, or command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig
// covers the framework-level settings: ports, TLS, logging, CORS and
// request limits.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session cookie configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name (default: tripsync-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Identity provider: "google" verifies OAuth access tokens against the
	// userinfo endpoint; "hmac" verifies locally signed JWTs (dev/test).
	IdentityProvider   string
	IdentityHMACSecret string
	GoogleUserinfoURL  string

	// Plan generation. An empty key disables POST /rooms/{id}/plan.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	PlanTimeout   time.Duration

	// Realtime transport
	WSAllowedOrigins []string // browser origins allowed to open /ws; "*" allows any
	WSSendBuffer     int      // outbound frames queued per connection before it is dropped
}
