package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

const volunteerShiftColumns = `
	id, account_id, shift_id, status, active, attendant, checked_in, checked_out,
	completion, review_note, created_at, updated_at, version
`

func scanVolunteerShift(row interface{ Scan(dest ...any) error }) (*domain.VolunteerShift, error) {
	vs := &domain.VolunteerShift{}
	dst := []any{
		&vs.ID,
		&vs.AccountID,
		&vs.ShiftID,
		&vs.Status,
		&vs.Active,
		&vs.Attendant,
		&vs.CheckedIn,
		&vs.CheckedOut,
		&vs.Completion,
		&vs.ReviewNote,
		&vs.CreatedAt,
		&vs.UpdatedAt,
		&vs.Version,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}
	return vs, nil
}

func getVolunteerShift(ctx context.Context, q querier, id int64) (*domain.VolunteerShift, error) {
	query := `SELECT ` + volunteerShiftColumns + ` FROM volunteer_shifts WHERE id = $1`

	vs, err := scanVolunteerShift(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, domain.ErrVolunteerShiftNotFound)
	}

	return vs, nil
}

func collectVolunteerShifts(rows *sql.Rows) ([]*domain.VolunteerShift, error) {
	defer rows.Close()

	result := []*domain.VolunteerShift{}
	for rows.Next() {
		vs, err := scanVolunteerShift(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, vs)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *Repository) GetVolunteerShift(ctx context.Context, id int64) (*domain.VolunteerShift, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return getVolunteerShift(ctx, r.dbpool, id)
}

func (t *Tx) GetVolunteerShift(ctx context.Context, id int64) (*domain.VolunteerShift, error) {
	return getVolunteerShift(ctx, t.q, id)
}

// ListVolunteerShifts 按 ID 升序分页，过滤条件为空时不生效
func (r *Repository) ListVolunteerShifts(ctx context.Context, filter domain.VolunteerShiftFilter, page domain.Page) ([]*domain.VolunteerShift, error) {
	conditions := []string{"id > $1"}
	args := []any{page.After}

	if filter.ShiftID != nil {
		args = append(args, *filter.ShiftID)
		conditions = append(conditions, fmt.Sprintf("shift_id = $%d", len(args)))
	}
	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		conditions = append(conditions, fmt.Sprintf("account_id = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	args = append(args, page.Limit)
	query := fmt.Sprintf(`SELECT %s FROM volunteer_shifts WHERE %s ORDER BY id LIMIT $%d`,
		volunteerShiftColumns, strings.Join(conditions, " AND "), len(args))

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return collectVolunteerShifts(rows)
}

// ListExpiredPendingIDs 只返回 ID，每条记录随后在独立事务中重新读取
func (r *Repository) ListExpiredPendingIDs(ctx context.Context, now time.Time, after int64, limit int) ([]int64, error) {
	query := `
		SELECT vs.id
		FROM volunteer_shifts vs
		JOIN shifts s ON s.id = vs.shift_id
		WHERE vs.status = $1 AND s.start_time <= $2 AND vs.id > $3
		ORDER BY vs.id
		LIMIT $4
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, domain.VolunteerShiftPending, now, after, limit)
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

func (t *Tx) HasActiveVolunteerShift(ctx context.Context, accountID, shiftID int64) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM volunteer_shifts WHERE account_id = $1 AND shift_id = $2 AND active)
	`

	isExists := false
	if err := t.q.QueryRowContext(ctx, query, accountID, shiftID).Scan(&isExists); err != nil {
		return false, err
	}

	return isExists, nil
}

func (t *Tx) CountApproved(ctx context.Context, shiftID, excludeID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM volunteer_shifts WHERE shift_id = $1 AND status = $2 AND id <> $3
	`

	count := 0
	if err := t.q.QueryRowContext(ctx, query, shiftID, domain.VolunteerShiftApproved, excludeID).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func (t *Tx) CreateVolunteerShift(ctx context.Context, vs *domain.VolunteerShift) error {
	query := `
		INSERT INTO volunteer_shifts (account_id, shift_id, status, active, attendant, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, version
	`

	args := []any{vs.AccountID, vs.ShiftID, vs.Status, vs.Active, vs.Attendant, vs.CreatedAt, vs.UpdatedAt}
	if err := t.q.QueryRowContext(ctx, query, args...).Scan(&vs.ID, &vs.Version); err != nil {
		return mapVolunteerShiftWriteErr(err)
	}

	return nil
}

// UpdateVolunteerShift 没有匹配到版本号时说明记录已被其他事务修改
func (t *Tx) UpdateVolunteerShift(ctx context.Context, vs *domain.VolunteerShift) error {
	query := `
		UPDATE volunteer_shifts
		SET
			status = $1,
			active = $2,
			checked_in = $3,
			checked_out = $4,
			completion = $5,
			review_note = $6,
			updated_at = $7,
			version = version + 1
		WHERE id = $8 AND version = $9
		RETURNING version
	`

	args := []any{vs.Status, vs.Active, vs.CheckedIn, vs.CheckedOut, vs.Completion, vs.ReviewNote, vs.UpdatedAt, vs.ID, vs.Version}
	if err := t.q.QueryRowContext(ctx, query, args...).Scan(&vs.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrVolunteerShiftModified
		}
		return mapVolunteerShiftWriteErr(err)
	}

	return nil
}

// ListReviewedVolunteerShifts 返回账号所有已评定完成度的记录，用于全量重算技能时长
func (t *Tx) ListReviewedVolunteerShifts(ctx context.Context, accountID int64) ([]*domain.VolunteerShift, error) {
	query := `SELECT ` + volunteerShiftColumns + ` FROM volunteer_shifts WHERE account_id = $1 AND completion IS NOT NULL ORDER BY id`

	rows, err := t.q.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}

	return collectVolunteerShifts(rows)
}
