// internal/app/bootstrap/routes.go
package bootstrap

import (
	"fmt"
	"net/http"

	chatsocketfeature "github.com/dalemusser/tripsync/internal/app/features/chatsocket"
	errorsfeature "github.com/dalemusser/tripsync/internal/app/features/errors"
	healthfeature "github.com/dalemusser/tripsync/internal/app/features/health"
	roomsfeature "github.com/dalemusser/tripsync/internal/app/features/rooms"
	sessionfeature "github.com/dalemusser/tripsync/internal/app/features/session"
	roomstore "github.com/dalemusser/tripsync/internal/app/store/rooms"
	userstore "github.com/dalemusser/tripsync/internal/app/store/users"
	"github.com/dalemusser/tripsync/internal/app/system/auth"
	"github.com/dalemusser/tripsync/internal/app/system/fanout"
	"github.com/dalemusser/tripsync/internal/app/system/identity"
	"github.com/dalemusser/tripsync/internal/app/system/llm"
	"github.com/dalemusser/tripsync/internal/app/system/planner"
	"github.com/dalemusser/tripsync/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup and
// Startup have completed. Every REST and websocket path that mutates a room
// shares one fan-out engine, so all clients observe one ordered log.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	verifier, err := newVerifier(appCfg, logger)
	if err != nil {
		logger.Error("identity verifier init failed", zap.Error(err))
		return nil, err
	}
	users := userstore.New(deps.MongoDatabase)
	sessionMgr.WithIdentity(verifier, users)

	rooms := roomstore.New(deps.MongoDatabase)
	engine := fanout.New(rooms, logger.Named("fanout"))
	plans := planner.New(rooms, newGenerator(appCfg), engine, timeouts.Generation(), logger.Named("planner"))

	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	// Health sits ahead of session loading so probes never touch the
	// identity provider.
	healthHandler := healthfeature.NewHandler(deps.MongoClient, engine, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Group(func(ar chi.Router) {
		// Loads SessionUser into context from a bearer credential or cookie.
		ar.Use(sessionMgr.LoadSessionUser)

		sessionHandler := sessionfeature.NewHandler(sessionMgr, logger)
		ar.Mount("/session", sessionfeature.Routes(sessionHandler))

		roomsHandler := roomsfeature.NewHandler(rooms, engine, plans, errLog, logger)
		ar.Mount("/rooms", roomsfeature.Routes(roomsHandler, sessionMgr))

		socketHandler := chatsocketfeature.NewHandler(engine, appCfg.WSAllowedOrigins, appCfg.WSSendBuffer, logger.Named("ws"))
		if deps.Realtime != nil {
			deps.Realtime.set(socketHandler)
		}
		ar.Mount("/ws", chatsocketfeature.Routes(socketHandler, sessionMgr))
	})

	logger.Info("routes mounted",
		zap.String("identity_provider", appCfg.IdentityProvider),
		zap.Bool("plan_generation", plans.Enabled()))
	return r, nil
}

func newVerifier(appCfg AppConfig, logger *zap.Logger) (identity.Verifier, error) {
	switch appCfg.IdentityProvider {
	case providerHMAC:
		v, err := identity.NewHMACVerifier(appCfg.IdentityHMACSecret, "")
		if err != nil {
			return nil, err
		}
		return v, nil
	case providerGoogle:
		return identity.NewGoogleVerifier(appCfg.GoogleUserinfoURL, logger.Named("identity")), nil
	default:
		return nil, fmt.Errorf("unknown identity provider %q", appCfg.IdentityProvider)
	}
}

// newGenerator returns nil when no API key is configured, which leaves plan
// generation disabled.
func newGenerator(appCfg AppConfig) planner.TextGenerator {
	if appCfg.OpenAIAPIKey == "" {
		return nil
	}
	return llm.NewOpenAI(llm.Config{
		APIKey:  appCfg.OpenAIAPIKey,
		BaseURL: appCfg.OpenAIBaseURL,
		Model:   appCfg.OpenAIModel,
	})
}
