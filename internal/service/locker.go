package service

import (
	"context"

	"github.com/kevinotieno/wablast-backend/internal/lease"
)

// NewLeaseLocker adapts the redis lease manager to the dispatcher's
// Locker contract.
func NewLeaseLocker(m *lease.Manager) Locker {
	return leaseLocker{m: m}
}

type leaseLocker struct {
	m *lease.Manager
}

func (l leaseLocker) Acquire(ctx context.Context, campaignID int) (Lease, bool, error) {
	held, won, err := l.m.Acquire(ctx, campaignID)
	if err != nil || !won {
		return nil, won, err
	}
	return held, true, nil
}
