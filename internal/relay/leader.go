package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// ErrNotLeader is returned by Renew when another instance holds the lease.
var ErrNotLeader = fmt.Errorf("not leader")

// LeaderElection implements single-leader election over Redis SETNX. The
// dispatch worker and retention sweeper must run on exactly one instance;
// the leader holds a key with a TTL, and the others take over when it
// expires.
type LeaderElection struct {
	rdb        *redis.Client
	instanceID string
	key        string
	ttl        time.Duration
}

// NewLeaderElection creates an election on the given key. instanceID must
// be unique per instance (e.g., hostname-PID).
func NewLeaderElection(client *Client, instanceID, key string, ttl time.Duration) *LeaderElection {
	return &LeaderElection{
		rdb:        client.rdb,
		instanceID: instanceID,
		key:        key,
		ttl:        ttl,
	}
}

// TryAcquire attempts to become the leader. Returns true if this instance
// now holds the lease.
func (l *LeaderElection) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, l.instanceID, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire leader lock: %w", err)
	}
	return ok, nil
}

// Renew extends the lease. The Lua script makes the check-and-expire
// atomic, so a lease that expired and was taken by another instance is
// never stolen back.
func (l *LeaderElection) Renew(ctx context.Context) error {
	script := `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("EXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
	`

	result, err := l.rdb.Eval(ctx, script, []string{l.key}, l.instanceID, int(l.ttl.Seconds())).Result()
	if err != nil {
		return fmt.Errorf("failed to renew leader lock: %w", err)
	}
	if result == int64(0) {
		return ErrNotLeader
	}
	return nil
}

// Release voluntarily gives up the lease on graceful shutdown. Deletes the
// key only while this instance still holds it.
func (l *LeaderElection) Release(ctx context.Context) error {
	script := `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
	`

	return l.rdb.Eval(ctx, script, []string{l.key}, l.instanceID).Err()
}

// RunWhenLeader runs fn only while this instance holds the lease. fn is
// started with a context that is cancelled the moment leadership is lost
// and restarted if leadership is regained later. Blocks until ctx is done.
func (l *LeaderElection) RunWhenLeader(ctx context.Context, clock clockwork.Clock, fn func(ctx context.Context)) {
	renewInterval := l.ttl / 2
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := l.Release(releaseCtx); err != nil {
			slog.Error("Failed to release leader lease", "key", l.key, "error", err)
		}
	}()

	for {
		acquired, err := l.TryAcquire(ctx)
		if err != nil {
			slog.Error("Leader acquisition failed", "key", l.key, "error", err)
		}

		if acquired {
			slog.Info("Acquired leadership", "key", l.key, "instance_id", l.instanceID)
			l.leadUntilLost(ctx, clock, renewInterval, fn)
			slog.Info("Lost leadership", "key", l.key, "instance_id", l.instanceID)
		}

		timer := clock.NewTimer(renewInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}
	}
}

func (l *LeaderElection) leadUntilLost(ctx context.Context, clock clockwork.Clock, renewInterval time.Duration, fn func(ctx context.Context)) {
	leaderCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(leaderCtx)
	}()

	for {
		timer := clock.NewTimer(renewInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			cancel()
			<-done
			return
		case <-timer.Chan():
		}

		if err := l.Renew(ctx); err != nil {
			slog.Warn("Leader lease renewal failed", "key", l.key, "error", err)
			cancel()
			<-done
			return
		}
	}
}
