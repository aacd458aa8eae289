// Package cluster provides distributed coordination for multiple atbot
// instances sharing one scheduler, using the alan UDP peer discovery
// library for a leader-election lock. Only the scheduler lock is needed
// here: unlike the teacher, this domain has no live key-rotation broadcast.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/rakunlabs/alan"
)

const lockScheduler = "atbot-scheduler"

// Cluster wraps an alan instance for atbot's distributed coordination.
type Cluster struct {
	alan *alan.Alan
}

// New creates a Cluster from the process's alan configuration. Returns
// nil, nil if cfg is nil (clustering disabled, the default single-instance
// mode).
func New(cfg *alan.Config) (*Cluster, error) {
	if cfg == nil {
		return nil, nil
	}

	a, err := alan.New(*cfg)
	if err != nil {
		return nil, fmt.Errorf("cluster: create alan instance: %w", err)
	}

	return &Cluster{alan: a}, nil
}

// Start begins peer discovery in the background. Blocks until ctx is
// cancelled; run it in a goroutine.
func (c *Cluster) Start(ctx context.Context) error {
	c.alan.OnPeerJoin(func(addr *net.UDPAddr) {
		slog.Info("cluster peer joined", "addr", addr.String())
	})
	c.alan.OnPeerLeave(func(addr *net.UDPAddr) {
		slog.Info("cluster peer left", "addr", addr.String())
	})

	return c.alan.Start(ctx, func(_ context.Context, msg alan.Message) {
		slog.Debug("cluster: unhandled message", "from", msg.Addr)
	})
}

func (c *Cluster) Stop() error {
	return c.alan.Stop()
}

// LockScheduler acquires the distributed lock that makes one instance the
// scheduler leader. Blocks until acquired or ctx is cancelled.
func (c *Cluster) LockScheduler(ctx context.Context) error {
	return c.alan.Lock(ctx, lockScheduler)
}

func (c *Cluster) UnlockScheduler() error {
	return c.alan.Unlock(lockScheduler)
}
