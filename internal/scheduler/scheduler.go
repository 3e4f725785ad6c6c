// Package scheduler 周期性地执行后台对账任务：把过期的待审核报名置为拒绝，
// 以及检查技能时长与全量重算结果是否一致。多实例部署时通过 redis 锁保证同一时刻只有一个实例执行。
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

type Task interface {
	RunReconciliationSweep(ctx context.Context) (int, error)
	CheckAllProfiles(ctx context.Context) (map[int64][]domain.SkillDrift, error)
}

// Locker 获取失败（已被其他实例持有）时返回 ok == false
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (lease Lease, ok bool, err error)
}

// Lease 是已持有的锁，任务执行期间需要定期续期
type Lease interface {
	Refresh(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

type Scheduler struct {
	parameters *Parameters
	task       Task
	locker     Locker
	logger     *zap.Logger
}

// New 的 locker 可以为空，此时不加锁
func New(parameters *Parameters, task Task, locker Locker, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		parameters: parameters,
		task:       task,
		locker:     locker,
		logger:     logger,
	}
}

// Run 阻塞直到 ctx 被取消，返回前会等待正在执行的任务结束
func (s *Scheduler) Run(ctx context.Context) {
	sweepTicker := time.NewTicker(s.parameters.SweepInterval)
	defer sweepTicker.Stop()

	var checkC <-chan time.Time
	if s.parameters.ConsistencyCheckInterval > 0 {
		checkTicker := time.NewTicker(s.parameters.ConsistencyCheckInterval)
		defer checkTicker.Stop()
		checkC = checkTicker.C
	}

	s.logger.Info("后台对账任务已启动",
		zap.Duration("sweepInterval", s.parameters.SweepInterval),
		zap.Duration("consistencyCheckInterval", s.parameters.ConsistencyCheckInterval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("后台对账任务已停止")
			return
		case <-sweepTicker.C:
			s.withLock(ctx, sweepLockKey, s.sweep)
		case <-checkC:
			s.withLock(ctx, consistencyLockKey, s.check)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	start := time.Now()
	count, err := s.task.RunReconciliationSweep(ctx)
	if err != nil {
		s.logger.Error("清理过期报名失败", zap.Int("processed", count), zap.Error(err))
		return
	}
	s.logger.Debug("清理过期报名完成", zap.Int("processed", count), zap.Duration("elapsed", time.Since(start)))
}

func (s *Scheduler) check(ctx context.Context) {
	drifts, err := s.task.CheckAllProfiles(ctx)
	if err != nil {
		s.logger.Error("技能时长一致性检查失败", zap.Error(err))
		return
	}
	if len(drifts) > 0 {
		s.logger.Warn("发现技能时长不一致的档案", zap.Int("profiles", len(drifts)))
	}
}

func (s *Scheduler) withLock(ctx context.Context, key string, fn func(context.Context)) {
	if s.locker == nil {
		fn(ctx)
		return
	}

	ttl := s.parameters.LockTTL
	lease, ok, err := s.locker.TryLock(ctx, key, ttl)
	if err != nil {
		s.logger.Warn("获取分布式锁失败，跳过本轮", zap.String("key", key), zap.Error(err))
		return
	}
	if !ok {
		s.logger.Debug("其他实例正在执行，跳过本轮", zap.String("key", key))
		return
	}

	// 任务执行期间每隔 ttl/3 续期一次，任务超过 ttl 时锁也不会被其他实例抢走
	stop := make(chan struct{})
	refreshed := make(chan struct{})
	go func() {
		defer close(refreshed)
		s.keepAlive(ctx, key, lease, ttl, stop)
	}()

	defer func() {
		close(stop)
		<-refreshed

		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			s.logger.Warn("释放分布式锁失败", zap.String("key", key), zap.Error(err))
		}
	}()

	fn(ctx)
}

func (s *Scheduler) keepAlive(ctx context.Context, key string, lease Lease, ttl time.Duration, stop <-chan struct{}) {
	interval := ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), interval)
			err := lease.Refresh(refreshCtx, ttl)
			cancel()
			if err != nil {
				// 续期失败不中断任务，清理是幂等的
				s.logger.Warn("分布式锁续期失败", zap.String("key", key), zap.Error(err))
			}
		}
	}
}
