package repository

import (
	"context"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

const shiftColumns = `activity_id, name, start_time, end_time, number_of_participants, frozen_status, created_at, version`

func scanShift(row interface{ Scan(dest ...any) error }, shift *domain.Shift) error {
	dst := []any{
		&shift.ActivityID,
		&shift.Name,
		&shift.StartTime,
		&shift.EndTime,
		&shift.NumberOfParticipants,
		&shift.FrozenStatus,
		&shift.CreatedAt,
		&shift.Version,
	}
	return row.Scan(dst...)
}

func getShift(ctx context.Context, q querier, id int64, forUpdate bool) (*domain.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	shift := &domain.Shift{
		ID: id,
	}
	if err := scanShift(q.QueryRowContext(ctx, query, id), shift); err != nil {
		return nil, notFound(err, domain.ErrShiftNotFound)
	}

	skills, err := getShiftSkills(ctx, q, id)
	if err != nil {
		return nil, err
	}
	shift.Skills = skills

	return shift, nil
}

func getShiftSkills(ctx context.Context, q querier, shiftID int64) ([]domain.ShiftSkill, error) {
	query := `
		SELECT skill_id, hours FROM shift_skills WHERE shift_id = $1 ORDER BY skill_id
	`

	rows, err := q.QueryContext(ctx, query, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	skills := []domain.ShiftSkill{}
	for rows.Next() {
		skill := domain.ShiftSkill{ShiftID: shiftID}
		if err := rows.Scan(&skill.SkillID, &skill.Hours); err != nil {
			return nil, err
		}
		skills = append(skills, skill)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return skills, nil
}

func (r *Repository) GetShift(ctx context.Context, id int64) (*domain.Shift, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return getShift(ctx, r.dbpool, id, false)
}

func (t *Tx) GetShift(ctx context.Context, id int64) (*domain.Shift, error) {
	return getShift(ctx, t.q, id, false)
}

// LockShift 对班次行加 FOR UPDATE 锁，直到事务结束
func (t *Tx) LockShift(ctx context.Context, id int64) (*domain.Shift, error) {
	return getShift(ctx, t.q, id, true)
}

func (t *Tx) GetShiftSkills(ctx context.Context, shiftID int64) ([]domain.ShiftSkill, error) {
	return getShiftSkills(ctx, t.q, shiftID)
}

func (r *Repository) ListShiftsByActivity(ctx context.Context, activityID int64) ([]*domain.Shift, error) {
	query := `SELECT id, ` + shiftColumns + ` FROM shifts WHERE activity_id = $1 ORDER BY start_time, id`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shifts := []*domain.Shift{}
	for rows.Next() {
		shift := &domain.Shift{}
		dst := []any{
			&shift.ID,
			&shift.ActivityID,
			&shift.Name,
			&shift.StartTime,
			&shift.EndTime,
			&shift.NumberOfParticipants,
			&shift.FrozenStatus,
			&shift.CreatedAt,
			&shift.Version,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		shifts = append(shifts, shift)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return shifts, nil
}

// CreateShift 同时写入班次及其技能权重
func (r *Repository) CreateShift(ctx context.Context, shift *domain.Shift) error {
	ctx, cancel := context.WithTimeout(ctx, r.txTimeout())
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO shifts (activity_id, name, start_time, end_time, number_of_participants)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, version
	`
	params := []any{shift.ActivityID, shift.Name, shift.StartTime, shift.EndTime, shift.NumberOfParticipants}
	if err := tx.QueryRowContext(ctx, query, params...).Scan(&shift.ID, &shift.CreatedAt, &shift.Version); err != nil {
		return err
	}

	for i := range shift.Skills {
		shift.Skills[i].ShiftID = shift.ID
		query = `
			INSERT INTO shift_skills (shift_id, skill_id, hours)
			VALUES ($1, $2, $3)
		`
		if _, err := tx.ExecContext(ctx, query, shift.ID, shift.Skills[i].SkillID, shift.Skills[i].Hours); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *Repository) CreateSkill(ctx context.Context, skill *domain.Skill) error {
	query := `
		INSERT INTO skills (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	if err := r.dbpool.QueryRowContext(ctx, query, skill.Name).Scan(&skill.ID); err != nil {
		return err
	}

	return nil
}
