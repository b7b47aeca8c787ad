// Package probe checks whether forwarding targets accept connections on the LAN.
package probe

import (
	"context"
	"net"
	"strconv"

	"go.uber.org/zap"

	"github.com/easzlab/rvcm/pkg/nat"
)

// Result is the outcome of probing one rule.
type Result struct {
	Rule    nat.Rule
	Address string
	// Skipped is set for rules that forward UDP only.
	Skipped bool
	Err     error
}

// Reachable reports whether the target accepted the connection.
func (r Result) Reachable() bool {
	return !r.Skipped && r.Err == nil
}

// Prober checks the targets of enabled forwarding rules one at a time.
type Prober struct {
	checker Checker
	logger  *zap.Logger
}

// NewProber creates a new Prober.
func NewProber(checker Checker, logger *zap.Logger) *Prober {
	return &Prober{
		checker: checker,
		logger:  logger,
	}
}

// Run probes every enabled rule in rules. prefix is the LAN network prefix
// the target octet is appended to, e.g. "192.168.1.". Disabled rules are
// left out of the result.
func (p *Prober) Run(ctx context.Context, prefix string, rules []nat.Rule) []Result {
	var results []Result
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}

		address := net.JoinHostPort(prefix+strconv.Itoa(rule.TargetHost), strconv.Itoa(rule.PrivatePortMin))
		result := Result{Rule: rule, Address: address}
		if !rule.Protocol.HasTCP() {
			result.Skipped = true
			results = append(results, result)
			continue
		}

		result.Err = p.checker.Check(ctx, address)
		if result.Err != nil {
			p.logger.Warn("target unreachable",
				zap.String("rule", rule.Name),
				zap.String("address", address),
				zap.Error(result.Err),
			)
		} else {
			p.logger.Debug("target reachable", zap.String("rule", rule.Name), zap.String("address", address))
		}
		results = append(results, result)
	}
	return results
}
