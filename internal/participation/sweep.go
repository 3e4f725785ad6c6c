package participation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

// RunReconciliationSweep 把班次已开始但仍待审核的报名置为拒绝，返回处理的记录数。
//
// 每条记录在独立的事务中处理，单条失败只记录日志并跳过；只有列出待处理记录失败时才返回错误。
// ctx 被取消后不再开始新的记录，但已开始的事务会执行完毕。
func (s *Service) RunReconciliationSweep(ctx context.Context) (int, error) {
	now := s.now()
	total := 0
	var after int64

	for {
		ids, err := s.store.ListExpiredPendingIDs(ctx, now, after, s.batchSize)
		if err != nil {
			return total, fmt.Errorf("获取过期的待审核报名失败: %w", err)
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return total, err
			}

			expired, err := s.expire(context.WithoutCancel(ctx), id)
			if err != nil {
				s.logger.Warn("处理过期报名失败，已跳过", zap.Int64("volunteerShiftID", id), zap.Error(err))
				continue
			}
			if expired {
				total++
			}
		}

		if len(ids) < s.batchSize {
			break
		}
		after = ids[len(ids)-1]
	}

	if total > 0 {
		s.logger.Info("已拒绝过期的待审核报名", zap.Int("count", total))
	}
	return total, nil
}

var errSkip = errors.New("skip")

// expire 与人工拒绝使用同一条状态迁移，记录已不处于待审核或班次未开始时直接跳过
func (s *Service) expire(ctx context.Context, recordID int64) (bool, error) {
	record, shift, err := s.decide(ctx, recordID, TransitionReject, func(record *domain.VolunteerShift, shift *domain.Shift, now time.Time) bool {
		return record.Status == domain.VolunteerShiftPending && shift.HasStarted(now)
	})
	if err != nil || record == nil {
		return false, err
	}

	s.notify(ctx, domain.MailTypeParticipationExpired, record, shift)
	return true, nil
}
