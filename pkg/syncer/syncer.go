// Package syncer keeps the router's forwarding table in line with the rule file.
package syncer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/easzlab/rvcm/pkg/config"
	"github.com/easzlab/rvcm/pkg/nat"
)

// Applier commits saved changes on the router.
type Applier interface {
	Apply(ctx context.Context) error
}

// Syncer coordinates the config manager and the reconciler.
type Syncer struct {
	configMgr  *config.Manager
	reconciler *nat.Reconciler
	applier    Applier
	apply      bool
	logger     *zap.Logger
}

// NewSyncer creates a Syncer. When apply is set, every pass that saved
// changes is followed by an Apply call.
func NewSyncer(configMgr *config.Manager, reconciler *nat.Reconciler, applier Applier, apply bool, logger *zap.Logger) *Syncer {
	return &Syncer{
		configMgr:  configMgr,
		reconciler: reconciler,
		applier:    applier,
		apply:      apply,
		logger:     logger,
	}
}

// RunOnce performs a single reconcile pass against the current config.
func (s *Syncer) RunOnce(ctx context.Context) (nat.Result, error) {
	cfg := s.configMgr.GetConfig()

	result, err := s.reconciler.Reconcile(ctx, cfg.Rules, cfg.Prune)
	if err != nil {
		return nat.Result{}, fmt.Errorf("reconcile failed: %w", err)
	}

	if s.apply && result.Changed() {
		if err := s.applier.Apply(ctx); err != nil {
			return result, fmt.Errorf("apply failed: %w", err)
		}
		s.logger.Info("changes applied")
	}
	return result, nil
}

// Run performs an initial pass, then re-runs on every config file change
// until ctx is cancelled. Failed passes are logged and do not stop the loop.
func (s *Syncer) Run(ctx context.Context) error {
	if s.configMgr.ConfigFileUsed() == "" {
		return fmt.Errorf("watch mode requires a config file")
	}
	initial := s.configMgr.GetConfig().Router

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("initial sync failed", zap.Error(err))
	}

	s.configMgr.WatchConfig()
	s.logger.Info("config watcher started", zap.String("file", s.configMgr.ConfigFileUsed()))

	for {
		select {
		case <-s.configMgr.OnChange():
			s.logger.Info("config change detected, triggering sync")
			if s.configMgr.GetConfig().Router != initial {
				s.logger.Warn("router connection settings changed; restart to use them")
			}
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("sync after config change failed", zap.Error(err))
			}

		case <-ctx.Done():
			s.logger.Info("shutdown signal received, stopping sync")
			return nil
		}
	}
}
