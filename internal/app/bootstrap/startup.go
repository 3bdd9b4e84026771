// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"sync"

	"github.com/dalemusser/giftexchange/internal/app/store/oauthstate"
	"github.com/dalemusser/giftexchange/internal/app/system/ratelimit"
	"github.com/dalemusser/giftexchange/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// background holds what Startup and BuildHandler launch so Shutdown can
// stop it.
var background struct {
	mu           sync.Mutex
	stateCleanup *workers.StateCleanup
	limiters     []*ratelimit.LookupLimiter
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	cleanup := workers.NewStateCleanup(oauthstate.New(deps.MongoDatabase), logger, appCfg.OAuthStateCleanupInterval)
	cleanup.Start()

	background.mu.Lock()
	background.stateCleanup = cleanup
	background.mu.Unlock()
	return nil
}

// stopBackground stops everything registered in background. It is safe to
// call twice.
func stopBackground() {
	background.mu.Lock()
	cleanup := background.stateCleanup
	limiters := background.limiters
	background.stateCleanup = nil
	background.limiters = nil
	background.mu.Unlock()

	if cleanup != nil {
		cleanup.Stop()
	}
	for _, l := range limiters {
		l.Stop()
	}
}
