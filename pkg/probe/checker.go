package probe

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Checker defines the interface for reachability probes.
type Checker interface {
	Check(ctx context.Context, address string) error
}

// TCPChecker probes a target by opening a TCP connection.
type TCPChecker struct {
	timeout time.Duration
}

// NewTCPChecker creates a new TCPChecker with the given timeout.
func NewTCPChecker(timeout time.Duration) *TCPChecker {
	return &TCPChecker{
		timeout: timeout,
	}
}

// Check attempts to establish a TCP connection to the given address.
// Returns nil if the connection succeeds, or an error if it fails.
func (c *TCPChecker) Check(ctx context.Context, address string) error {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("tcp check failed for %s: %w", address, err)
	}
	conn.Close()
	return nil
}
