// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/tripsync/internal/app/features/chatsocket"
	"github.com/dalemusser/tripsync/internal/app/system/identity"
	"github.com/dalemusser/tripsync/internal/app/system/llm"
	"github.com/dalemusser/tripsync/internal/app/system/planner"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

const (
	providerGoogle = "google"
	providerHMAC   = "hmac"
)

// appConfigKeys defines the configuration keys for tripsync.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: TRIPSYNC_MONGO_URI, TRIPSYNC_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "tripsync", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "tripsync-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime (e.g., 24h, 720h)"},

	// Identity provider
	{Name: "identity_provider", Default: providerGoogle, Desc: "Bearer credential verifier: 'google' or 'hmac'"},
	{Name: "identity_hmac_secret", Default: "", Desc: "HS256 secret for the 'hmac' provider (32+ chars)"},
	{Name: "google_userinfo_url", Default: identity.DefaultUserInfoURL, Desc: "OpenID userinfo endpoint for the 'google' provider"},

	// Plan generation
	{Name: "openai_api_key", Default: "", Desc: "API key for plan generation (blank disables it)"},
	{Name: "openai_base_url", Default: "", Desc: "Override the text-generation API base URL"},
	{Name: "openai_model", Default: llm.DefaultModel, Desc: "Model used for plan generation"},
	{Name: "plan_timeout", Default: "30s", Desc: "Upper bound for one plan-generation call"},

	// Realtime transport
	{Name: "ws_allowed_origins", Default: "", Desc: "Comma-separated browser origins allowed on /ws ('*' for any)"},
	{Name: "ws_send_buffer", Default: chatsocket.DefaultSendBuffer, Desc: "Outbound frames queued per websocket before it is dropped"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, TRIPSYNC_* for app) and flags,
// merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TRIPSYNC", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 30*24*time.Hour),

		IdentityProvider:   strings.ToLower(strings.TrimSpace(appValues.String("identity_provider"))),
		IdentityHMACSecret: appValues.String("identity_hmac_secret"),
		GoogleUserinfoURL:  appValues.String("google_userinfo_url"),

		OpenAIAPIKey:  appValues.String("openai_api_key"),
		OpenAIBaseURL: appValues.String("openai_base_url"),
		OpenAIModel:   appValues.String("openai_model"),
		PlanTimeout:   appValues.Duration("plan_timeout", planner.DefaultTimeout),

		WSAllowedOrigins: splitList(appValues.String("ws_allowed_origins")),
		WSSendBuffer:     appValues.Int("ws_send_buffer"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// The MongoDB URI and the identity provider settings are checked here so a
// bad deployment fails at startup instead of on the first request. A
// missing text-generation key only disables plan generation.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	switch appCfg.IdentityProvider {
	case providerGoogle:
		if strings.TrimSpace(appCfg.GoogleUserinfoURL) == "" {
			return fmt.Errorf("identity_provider %q requires google_userinfo_url", providerGoogle)
		}
	case providerHMAC:
		if len(appCfg.IdentityHMACSecret) < identity.MinSecretLen {
			return fmt.Errorf("identity_provider %q requires identity_hmac_secret of at least %d characters",
				providerHMAC, identity.MinSecretLen)
		}
	default:
		return fmt.Errorf("unknown identity_provider %q (want %q or %q)", appCfg.IdentityProvider, providerGoogle, providerHMAC)
	}

	if appCfg.OpenAIAPIKey == "" {
		logger.Warn("openai_api_key is not set; plan generation is disabled")
	}
	if appCfg.WSSendBuffer <= 0 {
		return fmt.Errorf("ws_send_buffer must be positive, got %d", appCfg.WSSendBuffer)
	}
	return nil
}

// splitList parses a comma-separated config value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
