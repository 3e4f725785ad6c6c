package repository

import (
	"context"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

func getProfileSkills(ctx context.Context, q querier, profileID int64) ([]domain.ProfileSkill, error) {
	query := `
		SELECT skill_id, hours, updated_at FROM profile_skills WHERE profile_id = $1 ORDER BY skill_id
	`

	rows, err := q.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	skills := []domain.ProfileSkill{}
	for rows.Next() {
		skill := domain.ProfileSkill{ProfileID: profileID}
		if err := rows.Scan(&skill.SkillID, &skill.Hours, &skill.UpdatedAt); err != nil {
			return nil, err
		}
		skills = append(skills, skill)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return skills, nil
}

func (r *Repository) GetProfileSkills(ctx context.Context, profileID int64) ([]domain.ProfileSkill, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return getProfileSkills(ctx, r.dbpool, profileID)
}

func (t *Tx) GetProfileSkills(ctx context.Context, profileID int64) ([]domain.ProfileSkill, error) {
	return getProfileSkills(ctx, t.q, profileID)
}

// AddProfileSkillHours 在数据库内完成累加，结果不低于 0
func (t *Tx) AddProfileSkillHours(ctx context.Context, profileID, skillID int64, delta float64) error {
	query := `
		INSERT INTO profile_skills (profile_id, skill_id, hours)
		VALUES ($1, $2, GREATEST($3::double precision, 0))
		ON CONFLICT (profile_id, skill_id) DO UPDATE
		SET hours = GREATEST(profile_skills.hours + $3::double precision, 0), updated_at = NOW()
	`

	if _, err := t.q.ExecContext(ctx, query, profileID, skillID, delta); err != nil {
		return err
	}

	return nil
}

func (t *Tx) SetProfileSkillHours(ctx context.Context, profileID, skillID int64, hours float64) error {
	query := `
		INSERT INTO profile_skills (profile_id, skill_id, hours)
		VALUES ($1, $2, $3)
		ON CONFLICT (profile_id, skill_id) DO UPDATE
		SET hours = EXCLUDED.hours, updated_at = NOW()
	`

	if _, err := t.q.ExecContext(ctx, query, profileID, skillID, hours); err != nil {
		return err
	}

	return nil
}

// ListProfileIDs 按 ID 升序分页列出所有档案
func (r *Repository) ListProfileIDs(ctx context.Context, after int64, limit int) ([]int64, error) {
	query := `
		SELECT id FROM users WHERE id > $1 ORDER BY id LIMIT $2
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *Repository) ListSkills(ctx context.Context) ([]domain.Skill, error) {
	query := `
		SELECT id, name FROM skills ORDER BY id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	skills := []domain.Skill{}
	for rows.Next() {
		var skill domain.Skill
		if err := rows.Scan(&skill.ID, &skill.Name); err != nil {
			return nil, err
		}
		skills = append(skills, skill)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return skills, nil
}
