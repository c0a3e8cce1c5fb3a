package lease

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Manager hands out per-campaign dispatch leases via Redis SET NX with TTL.
// Exactly one dispatcher can hold the lease for a campaign id at a time,
// which is what keeps two runs of the same campaign from interleaving.
type Manager struct {
	client *redis.Client
	ttl    time.Duration
}

func NewManager(client *redis.Client, ttl time.Duration) *Manager {
	return &Manager{client: client, ttl: ttl}
}

// Lease is one held dispatch lease. The random owner value makes release
// and extend refuse to touch a lease that expired and was re-acquired by
// someone else.
type Lease struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// Acquire tries to take the lease for a campaign. The second return value
// is false when another holder currently owns it.
func (m *Manager) Acquire(ctx context.Context, campaignID int) (*Lease, bool, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return nil, false, fmt.Errorf("failed to generate lease owner token: %w", err)
	}
	l := &Lease{
		client: m.client,
		key:    fmt.Sprintf("dispatch:lease:%d", campaignID),
		value:  hex.EncodeToString(b),
		ttl:    m.ttl,
	}

	won, err := m.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lease %s: %w", l.key, err)
	}
	if !won {
		return nil, false, nil
	}
	return l, true, nil
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Release drops the lease if we still own it.
func (l *Lease) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Result()
	return err
}

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Extend pushes the TTL out for long runs. Returns an error if the lease
// is no longer ours.
func (l *Lease) Extend(ctx context.Context) error {
	res, err := extendScript.Run(ctx, l.client, []string{l.key}, l.value, l.ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}
	if n, ok := res.(int64); !ok || n == 0 {
		return fmt.Errorf("lease %s no longer held", l.key)
	}
	return nil
}
