package lock

import (
	"context"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/zero-day-ai/conductor/internal/types"
)

const etcdLockKey = "/conductor/engine-lock"

// EtcdLocker implements the distributed lock as an etcd lease. The lease
// TTL replaces the stale threshold: a crashed holder's lease expires and
// the key vanishes, so reclamation needs no explicit sweep.
type EtcdLocker struct {
	client *clientv3.Client
	ttl    time.Duration

	mu       sync.Mutex
	leaseID  clientv3.LeaseID
	threadID types.ID
}

var _ Locker = (*EtcdLocker)(nil)

// NewEtcdLocker creates a lease-based locker. ttl is the lease lifetime;
// heartbeats keep it alive.
func NewEtcdLocker(client *clientv3.Client, ttl time.Duration) *EtcdLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &EtcdLocker{client: client, ttl: ttl}
}

func (l *EtcdLocker) TryAcquire(ctx context.Context, holderID string, threadID types.ID) (bool, error) {
	lease, err := l.client.Grant(ctx, int64(l.ttl.Seconds()))
	if err != nil {
		return false, types.WrapError(types.LOCK_CONTENTION, "etcd lease grant failed", err)
	}

	// Put only when the key does not exist; an expired lease deletes the
	// key, so staleness is handled by etcd itself.
	txn, err := l.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(etcdLockKey), "=", 0)).
		Then(clientv3.OpPut(etcdLockKey, holderID+"|"+threadID.String(), clientv3.WithLease(lease.ID))).
		Commit()
	if err != nil {
		l.client.Revoke(context.Background(), lease.ID)
		return false, types.WrapError(types.LOCK_CONTENTION, "etcd lock transaction failed", err)
	}
	if !txn.Succeeded {
		l.client.Revoke(context.Background(), lease.ID)
		return false, nil
	}

	l.mu.Lock()
	l.leaseID = lease.ID
	l.threadID = threadID
	l.mu.Unlock()
	return true, nil
}

func (l *EtcdLocker) Heartbeat(ctx context.Context, holderID string) (bool, error) {
	l.mu.Lock()
	leaseID := l.leaseID
	l.mu.Unlock()
	if leaseID == clientv3.NoLease {
		return false, nil
	}

	if _, err := l.client.KeepAliveOnce(ctx, leaseID); err != nil {
		// An expired or revoked lease means the lock was lost, not that
		// the backend failed.
		return false, nil
	}
	return true, nil
}

func (l *EtcdLocker) Release(ctx context.Context, holderID string) error {
	l.mu.Lock()
	leaseID := l.leaseID
	l.leaseID = clientv3.NoLease
	l.threadID = types.ID("")
	l.mu.Unlock()

	if leaseID == clientv3.NoLease {
		return nil
	}
	if _, err := l.client.Revoke(ctx, leaseID); err != nil {
		return types.WrapError(types.LOCK_NOT_HELD, "etcd lease revoke failed", err)
	}
	return nil
}

func (l *EtcdLocker) Current(ctx context.Context) (*Status, error) {
	resp, err := l.client.Get(ctx, etcdLockKey)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "etcd lock read failed", err)
	}
	if len(resp.Kvs) == 0 {
		return &Status{}, nil
	}

	value := string(resp.Kvs[0].Value)
	status := &Status{Held: true, HolderID: value}
	for i := 0; i < len(value); i++ {
		if value[i] == '|' {
			status.HolderID = value[:i]
			status.ThreadID = types.ID(value[i+1:])
			break
		}
	}
	return status, nil
}
