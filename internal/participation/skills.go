package participation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/accrual"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

func (s *Service) ListProfileSkills(ctx context.Context, profileID int64) ([]domain.ProfileSkill, error) {
	return s.store.GetProfileSkills(ctx, profileID)
}

// RebuildProfileSkills 从所有已审核的报名记录重新计算档案的技能时长
func (s *Service) RebuildProfileSkills(ctx context.Context, profileID int64) ([]domain.ProfileSkill, error) {
	var skills []domain.ProfileSkill
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		skills, err = accrual.RebuildAll(ctx, tx, profileID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return skills, nil
}

// CheckProfileSkills 返回存储值与全量重算值之间的偏差，不做修改
func (s *Service) CheckProfileSkills(ctx context.Context, profileID int64) ([]domain.SkillDrift, error) {
	var drifts []domain.SkillDrift
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		drifts, err = accrual.Check(ctx, tx, profileID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return drifts, nil
}

// CheckAllProfiles 逐批检查所有档案，返回存在偏差的档案及其偏差
func (s *Service) CheckAllProfiles(ctx context.Context) (map[int64][]domain.SkillDrift, error) {
	result := make(map[int64][]domain.SkillDrift)
	var after int64

	for {
		ids, err := s.store.ListProfileIDs(ctx, after, s.batchSize)
		if err != nil {
			return result, fmt.Errorf("获取档案列表失败: %w", err)
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			drifts, err := s.CheckProfileSkills(ctx, id)
			if err != nil {
				s.logger.Warn("检查档案技能时长失败，已跳过", zap.Int64("profileID", id), zap.Error(err))
				continue
			}
			if len(drifts) > 0 {
				result[id] = drifts
				s.logger.Warn("档案技能时长与重算结果不一致", zap.Int64("profileID", id), zap.Any("drifts", drifts))
			}
		}

		if len(ids) < s.batchSize {
			break
		}
		after = ids[len(ids)-1]
	}

	return result, nil
}
