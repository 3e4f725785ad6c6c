package scheduler

import "time"

type Parameters struct {
	SweepInterval time.Duration
	// 为 0 时不做一致性检查
	ConsistencyCheckInterval time.Duration
	LockTTL                  time.Duration
}

const (
	sweepLockKey       = "reconciliation_sweep_lock"
	consistencyLockKey = "consistency_check_lock"
)
