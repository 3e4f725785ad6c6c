package repository

import (
	"context"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

func getActivity(ctx context.Context, q querier, id int64) (*domain.Activity, error) {
	query := `
		SELECT organization_id, name, description, status, created_at, version
		FROM activities WHERE id = $1
	`

	activity := &domain.Activity{
		ID: id,
	}

	dst := []any{&activity.OrganizationID, &activity.Name, &activity.Description, &activity.Status, &activity.CreatedAt, &activity.Version}
	if err := q.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, notFound(err, domain.ErrActivityNotFound)
	}

	return activity, nil
}

func (r *Repository) GetActivity(ctx context.Context, id int64) (*domain.Activity, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return getActivity(ctx, r.dbpool, id)
}

func (t *Tx) GetActivity(ctx context.Context, id int64) (*domain.Activity, error) {
	return getActivity(ctx, t.q, id)
}

func (r *Repository) CreateActivity(ctx context.Context, activity *domain.Activity) error {
	query := `
		INSERT INTO activities (organization_id, name, description, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{activity.OrganizationID, activity.Name, activity.Description, activity.Status}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&activity.ID, &activity.CreatedAt, &activity.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) AddActivityManager(ctx context.Context, activityID, accountID int64) error {
	query := `
		INSERT INTO activity_managers (activity_id, account_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	if _, err := r.dbpool.ExecContext(ctx, query, activityID, accountID); err != nil {
		return err
	}

	return nil
}

// CanManage 管理员可以管理所有活动，其余账号需要在 activity_managers 中有对应记录
func (r *Repository) CanManage(ctx context.Context, actorID, activityID int64) (bool, error) {
	query := `
		SELECT
			EXISTS (SELECT 1 FROM users WHERE id = $1 AND role = $3 AND is_active)
			OR EXISTS (SELECT 1 FROM activity_managers WHERE account_id = $1 AND activity_id = $2)
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	canManage := false
	if err := r.dbpool.QueryRowContext(ctx, query, actorID, activityID, domain.RoleAdmin).Scan(&canManage); err != nil {
		return false, err
	}

	return canManage, nil
}
