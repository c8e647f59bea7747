package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/secureauth/sentinel/internal/config"
	"github.com/secureauth/sentinel/internal/services"
)

// CleanupManager periodically prunes stale untrusted device rows. Trusted
// devices and the login ledger are never touched: the ledger is append-only
// and trusted rows only leave through explicit revocation.
type CleanupManager struct {
	trust  *services.TrustService
	cfg    config.CleanupConfig
	logger *slog.Logger
	stopCh chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(trust *services.TrustService, cfg config.CleanupConfig, logger *slog.Logger) *CleanupManager {
	return &CleanupManager{
		trust:  trust,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.cfg.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	removed, err := cm.trust.PruneStale(cleanupCtx, cm.cfg.UntrustedDeviceRetention)
	if err != nil {
		cm.logger.Error("failed to prune stale devices", slog.Any("error", err))
		return
	}

	if removed > 0 {
		cm.logger.Info("stale device cleanup completed", slog.Int64("rows_deleted", removed))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
