// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/giftexchange/internal/app/exchange"
	authgooglefeature "github.com/dalemusser/giftexchange/internal/app/features/authgoogle"
	errorsfeature "github.com/dalemusser/giftexchange/internal/app/features/errors"
	groupsfeature "github.com/dalemusser/giftexchange/internal/app/features/groups"
	healthfeature "github.com/dalemusser/giftexchange/internal/app/features/health"
	joinfeature "github.com/dalemusser/giftexchange/internal/app/features/join"
	logoutfeature "github.com/dalemusser/giftexchange/internal/app/features/logout"
	mefeature "github.com/dalemusser/giftexchange/internal/app/features/me"
	"github.com/dalemusser/giftexchange/internal/app/store/audit"
	groupstore "github.com/dalemusser/giftexchange/internal/app/store/groups"
	"github.com/dalemusser/giftexchange/internal/app/store/oauthstate"
	"github.com/dalemusser/giftexchange/internal/app/system/auditlog"
	"github.com/dalemusser/giftexchange/internal/app/system/auth"
	"github.com/dalemusser/giftexchange/internal/app/system/metrics"
	"github.com/dalemusser/giftexchange/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. It wires the Mongo-backed stores into
// the exchange service and mounts the feature routers.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	groups := groupstore.New(deps.MongoDatabase,
		groupstore.WithPollInterval(appCfg.WatchPollInterval),
		groupstore.WithLogger(logger))

	return newRouter(routerDeps{
		Env:        coreCfg.Env,
		Config:     appCfg,
		Groups:     groups,
		States:     oauthstate.New(deps.MongoDatabase),
		AuditStore: audit.New(deps.MongoDatabase),
		Pinger:     deps.MongoClient,
		Registry:   prometheus.NewRegistry(),
	}, logger)
}

// routerDeps is everything newRouter needs. Tests fill it with in-memory
// stores.
type routerDeps struct {
	Env        string
	Config     AppConfig
	Groups     exchange.GroupStore
	States     authgooglefeature.StateStore
	AuditStore *audit.Store // nil skips "db" audit destinations
	Pinger     healthfeature.Pinger
	Registry   *prometheus.Registry
}

func newRouter(d routerDeps, logger *zap.Logger) (http.Handler, error) {
	appCfg := d.Config

	// Secure cookies are enabled in production mode.
	secure := d.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	d.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(d.Registry)

	svc := exchange.New(d.Groups,
		exchange.WithLogger(logger),
		exchange.WithMetrics(m))

	errLog := errorsfeature.NewErrorLogger(logger)
	auditLog := auditlog.New(d.AuditStore, logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Group: appCfg.AuditLogGroup,
	})

	limiter := ratelimit.NewLookupLimiter(appCfg.SchemaLookupsPerMinute)
	background.mu.Lock()
	background.limiters = append(background.limiters, limiter)
	background.mu.Unlock()

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if signed in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(d.Pinger, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", m.Handler())

	// Identity
	googleHandler := authgooglefeature.NewHandler(
		sessionMgr,
		errLog,
		auditLog,
		d.States,
		appCfg.GoogleClientID,
		appCfg.GoogleClientSecret,
		appCfg.BaseURL,
		appCfg.DevLogin && d.Env == "dev",
		logger,
	)
	r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))
	if googleHandler.DevLogin {
		r.Mount("/auth/dev", authgooglefeature.DevRoutes(googleHandler))
		logger.Warn("development sign-in is enabled at /auth/dev")
	}

	logoutHandler := logoutfeature.NewHandler(sessionMgr, auditLog, svc.Hub(), logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	r.Mount("/me", mefeature.Routes(mefeature.NewHandler()))

	// Groups and joining
	groupsHandler := groupsfeature.NewHandler(svc, errLog, auditLog, logger)
	r.Mount("/groups", groupsfeature.Routes(groupsHandler, sessionMgr))

	joinHandler := joinfeature.NewHandler(svc, errLog, auditLog, limiter, logger)
	r.Mount("/join", joinfeature.Routes(joinHandler, sessionMgr))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/groups", http.StatusSeeOther)
	})

	return r, nil
}
