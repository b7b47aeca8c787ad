package nat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/easzlab/rvcm/pkg/config"
)

// Result summarizes one reconcile pass.
type Result struct {
	Created []Rule
	Updated []Rule
	Removed []Rule
}

// Changed reports whether the pass wrote anything to the router.
func (r Result) Changed() bool {
	return len(r.Created)+len(r.Updated)+len(r.Removed) > 0
}

// Reconciler brings the router's table in line with the desired rules from
// the config file. It reads the table once per pass and saves at most once.
type Reconciler struct {
	service *Service
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewReconciler creates a new Reconciler.
func NewReconciler(service *Service, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		service: service,
		logger:  logger,
	}
}

// Reconcile converges every desired rule, appends the missing ones and, with
// prune set, drops rules whose names are not desired.
func (r *Reconciler) Reconcile(ctx context.Context, desired []config.RuleConfig, prune bool) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("starting reconcile", zap.Int("desired_rules", len(desired)), zap.Bool("prune", prune))

	// Phase 1: build desired state
	wanted, err := buildDesiredState(desired)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build desired state: %w", err)
	}

	// Phase 2: read actual state
	table, err := r.service.Fetch(ctx)
	if err != nil {
		return Result{}, err
	}

	// Phase 3: diff
	var result Result
	names := make(map[string]bool, len(wanted))
	for _, want := range wanted {
		names[want.Name] = true
		if len(table.Find(want.Name)) == 0 {
			table.Append(want)
			result.Created = append(result.Created, want)
			continue
		}
		result.Updated = append(result.Updated, table.Converge(want)...)
	}

	if prune {
		result.Removed = table.RemoveFunc(func(rule Rule) bool { return !names[rule.Name] })
	}

	if !result.Changed() {
		r.logger.Info("reconcile completed, router already in sync")
		return result, nil
	}

	// Phase 4: write back
	if err := r.service.Save(ctx, table); err != nil {
		return Result{}, err
	}

	r.service.logRules("created rule", result.Created)
	r.service.logRules("updated rule", result.Updated)
	r.service.logRules("removed rule", result.Removed)
	r.logger.Info("reconcile completed successfully",
		zap.Int("created", len(result.Created)),
		zap.Int("updated", len(result.Updated)),
		zap.Int("removed", len(result.Removed)),
	)
	return result, nil
}

// buildDesiredState converts config rules, reporting every invalid one.
func buildDesiredState(configs []config.RuleConfig) ([]Rule, error) {
	rules := make([]Rule, 0, len(configs))
	var errs []error
	for _, rc := range configs {
		rule, err := RuleFromConfig(rc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rules = append(rules, rule)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return rules, nil
}
