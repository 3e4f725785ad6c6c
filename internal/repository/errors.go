package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

const (
	uniqueViolation = "23505"

	activeVolunteerShiftIndex = "volunteer_shifts_active_key"
)

// notFound 把 sql.ErrNoRows 转换为对应的业务错误，其余错误原样返回
func notFound(err error, target *domain.Error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return target
	}
	return err
}

// mapVolunteerShiftWriteErr 处理写入报名记录时的约束冲突
func mapVolunteerShiftWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == activeVolunteerShiftIndex {
		return domain.ErrAlreadyJoined
	}
	return err
}
