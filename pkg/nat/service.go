package nat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/easzlab/rvcm/pkg/config"
	"github.com/easzlab/rvcm/pkg/router"
)

// Transport is the subset of router.Client the NAT service needs.
type Transport interface {
	Get(ctx context.Context, path string) (string, error)
	Post(ctx context.Context, path string, form router.Form, referer string) (string, error)
}

// Service runs fetch-mutate-save cycles against the router's NAT table.
// Every mutation re-reads the whole table first and writes the whole table
// back; there is no protection against a concurrent writer.
type Service struct {
	transport Transport
	codec     Codec
	logger    *zap.Logger
}

// NewService creates a Service using the RV6688BCM codec.
func NewService(transport Transport, logger *zap.Logger) *Service {
	return NewServiceWithCodec(transport, NewCodec(), logger)
}

// NewServiceWithCodec creates a Service with a specific page codec.
func NewServiceWithCodec(transport Transport, codec Codec, logger *zap.Logger) *Service {
	return &Service{
		transport: transport,
		codec:     codec,
		logger:    logger,
	}
}

// Fetch reads the current table from the router.
func (s *Service) Fetch(ctx context.Context) (Table, error) {
	page, err := s.transport.Get(ctx, router.PathNAT)
	if err != nil {
		return Table{}, fmt.Errorf("failed to fetch NAT table: %w", err)
	}

	table, err := s.codec.Decode(page)
	if err != nil {
		return Table{}, fmt.Errorf("failed to parse NAT table: %w", err)
	}

	s.logger.Debug("fetched NAT table", zap.Int("rules", table.Len()))
	return table, nil
}

// Save writes the complete table to the router.
func (s *Service) Save(ctx context.Context, table Table) error {
	form := s.codec.Encode(table)
	if _, err := s.transport.Post(ctx, router.PathNATSave, form, router.PathNAT); err != nil {
		return fmt.Errorf("failed to save NAT table: %w", err)
	}

	s.logger.Info("saved NAT table", zap.Int("rules", table.Len()))
	return nil
}

// Create appends rule, always disabled, and saves the table.
func (s *Service) Create(ctx context.Context, rule Rule) (Rule, error) {
	rule.Enabled = false
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}

	table, err := s.Fetch(ctx)
	if err != nil {
		return Rule{}, err
	}
	table.Append(rule)

	if err := s.Save(ctx, table); err != nil {
		return Rule{}, err
	}
	s.logRules("created rule", []Rule{rule})
	return rule, nil
}

// Enable turns on every rule named name. It returns the rules that changed;
// when none did the table is not saved.
func (s *Service) Enable(ctx context.Context, name string) ([]Rule, error) {
	return s.mutate(ctx, "enabled rule", func(t *Table) ([]Rule, error) {
		return t.SetEnabled(name, true), nil
	})
}

// Disable turns off every rule named name without removing it.
func (s *Service) Disable(ctx context.Context, name string) ([]Rule, error) {
	return s.mutate(ctx, "disabled rule", func(t *Table) ([]Rule, error) {
		return t.SetEnabled(name, false), nil
	})
}

// Rename renames every rule named name. The returned rules carry the old name.
func (s *Service) Rename(ctx context.Context, name, newName string) ([]Rule, error) {
	if err := config.ValidateRuleName(newName); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "renamed rule", func(t *Table) ([]Rule, error) {
		return t.Rename(name, newName), nil
	})
}

// Update overwrites the supplied fields on every rule named name. Nothing is
// saved if a resulting rule has an invalid port range or target.
func (s *Service) Update(ctx context.Context, name string, update RuleUpdate) ([]Rule, error) {
	if update.Protocol != nil && !update.Protocol.Valid() {
		return nil, fmt.Errorf("invalid protocol code %d", int(*update.Protocol))
	}
	return s.mutate(ctx, "updated rule", func(t *Table) ([]Rule, error) {
		return t.Update(name, update)
	})
}

// Remove deletes every rule named name.
func (s *Service) Remove(ctx context.Context, name string) ([]Rule, error) {
	return s.mutate(ctx, "removed rule", func(t *Table) ([]Rule, error) {
		return t.Remove(name), nil
	})
}

// mutate fetches the table, applies fn and saves only if fn reported changes
// and no error.
func (s *Service) mutate(ctx context.Context, action string, fn func(*Table) ([]Rule, error)) ([]Rule, error) {
	table, err := s.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	changed, err := fn(&table)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		s.logger.Debug("no matching rule changed, skipping save")
		return nil, nil
	}

	if err := s.Save(ctx, table); err != nil {
		return nil, err
	}
	s.logRules(action, changed)
	return changed, nil
}

func (s *Service) logRules(action string, rules []Rule) {
	for _, rule := range rules {
		s.logger.Info(action,
			zap.String("name", rule.Name),
			zap.Bool("enabled", rule.Enabled),
			zap.Stringer("protocol", rule.Protocol),
			zap.String("rule", rule.String()),
		)
	}
}
