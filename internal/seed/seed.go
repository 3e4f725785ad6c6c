package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/config"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/participation"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/repository"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/utils"
)

type Seeder struct {
	cfg    *config.Config
	repo   *repository.Repository
	logger *zap.Logger
}

func New(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) *Seeder {
	return &Seeder{
		cfg:    cfg,
		repo:   repo,
		logger: logger,
	}
}

// SeedUsers 插入 n 个随机用户，返回成功插入的数量
func (s *Seeder) SeedUsers(ctx context.Context, n int, role domain.Role) int {
	cnt := 0
	for i := 0; i < n; i++ {
		user, err := utils.GenerateRandomUser(s.cfg.Seed.User.Password, s.cfg.Email.UserDomain, role)
		if err != nil {
			s.logger.Error("无法生成随机用户", zap.Error(err))
			continue
		}

		if err := s.repo.CreateUser(ctx, user); err != nil {
			s.logger.Error("无法插入用户", zap.Error(err))
			continue
		}
		cnt++
	}
	return cnt
}

func (s *Seeder) SeedSkills(ctx context.Context) ([]domain.Skill, error) {
	skills := make([]domain.Skill, 0, len(utils.SkillNames))
	for _, name := range utils.SkillNames {
		skill := domain.Skill{Name: name}
		if err := s.repo.CreateSkill(ctx, &skill); err != nil {
			return nil, fmt.Errorf("无法插入技能 %s: %w", name, err)
		}
		skills = append(skills, skill)
	}
	return skills, nil
}

// SeedActivities 为随机的组织者创建活动及其班次，组织者同时成为活动管理者
func (s *Seeder) SeedActivities(ctx context.Context, n int) (int, error) {
	organizers, err := s.repo.ListUserIDsByRole(ctx, domain.RoleOrganizer)
	if err != nil {
		return 0, err
	}
	if len(organizers) == 0 {
		return 0, errors.New("数据库中没有组织者，请先插入组织者")
	}

	skills, err := s.SeedSkills(ctx)
	if err != nil {
		return 0, err
	}

	cnt := 0
	for i := 0; i < n; i++ {
		organizerID := organizers[rand.Intn(len(organizers))]
		activity := utils.GenerateRandomActivity(organizerID)
		if err := s.repo.CreateActivity(ctx, activity); err != nil {
			s.logger.Error("无法插入活动", zap.Error(err))
			continue
		}
		if err := s.repo.AddActivityManager(ctx, activity.ID, organizerID); err != nil {
			s.logger.Error("无法设置活动管理者", zap.Int64("activityID", activity.ID), zap.Error(err))
			continue
		}

		for _, shift := range utils.GenerateRandomShifts(activity.ID, skills) {
			if err := utils.ValidateShiftTime(shift); err != nil {
				s.logger.Warn("跳过不合法的班次", zap.Error(err))
				continue
			}
			if err := utils.ValidateShiftSkills(shift.Skills); err != nil {
				s.logger.Warn("跳过不合法的班次", zap.Error(err))
				continue
			}
			if err := s.repo.CreateShift(ctx, shift); err != nil {
				s.logger.Error("无法插入班次", zap.Int64("activityID", activity.ID), zap.Error(err))
			}
		}
		cnt++
	}

	return cnt, nil
}

// SeedParticipations 让随机的志愿者报名活动的班次。
// 报名和审核都经过 participation.Service，时钟被拨到班次开始之前，
// 对于已经结束的班次还会以班次结束后的时钟评定完成度，从而产生技能时长。
func (s *Seeder) SeedParticipations(ctx context.Context, activityID int64) (int, error) {
	volunteers, err := s.repo.ListUserIDsByRole(ctx, domain.RoleVolunteer)
	if err != nil {
		return 0, err
	}

	shifts, err := s.repo.ListShiftsByActivity(ctx, activityID)
	if err != nil {
		return 0, err
	}

	activity, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return 0, err
	}
	managerID := activity.OrganizationID

	cnt := 0
	for _, shift := range shifts {
		var now time.Time
		svc := participation.NewService(s.repo, s.repo, s.logger, participation.WithClock(func() time.Time { return now }))

		now = shift.StartTime.Add(-24 * time.Hour)
		for _, volunteerID := range utils.GenerateRandomSubset(volunteers, int(shift.NumberOfParticipants)+2) {
			record, err := svc.SignUp(ctx, volunteerID, shift.ID, rand.Intn(2) == 0)
			if err != nil {
				s.logger.Debug("报名失败", zap.Int64("shiftID", shift.ID), zap.Error(err))
				continue
			}
			cnt++

			if rand.Intn(4) == 0 {
				continue
			}
			if _, err := svc.Decide(ctx, record.ID, managerID, participation.TransitionApprove); err != nil {
				s.logger.Debug("审核失败", zap.Int64("volunteerShiftID", record.ID), zap.Error(err))
				continue
			}

			if !shift.HasEnded(time.Now()) {
				continue
			}
			now = shift.EndTime.Add(time.Hour)
			completion := float64(rand.Intn(11) * 10)
			if _, err := svc.Review(ctx, record.ID, managerID, completion, nil); err != nil {
				s.logger.Debug("评定失败", zap.Int64("volunteerShiftID", record.ID), zap.Error(err))
			}
			now = shift.StartTime.Add(-24 * time.Hour)
		}
	}

	return cnt, nil
}
