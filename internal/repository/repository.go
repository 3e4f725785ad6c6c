package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/config"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/participation"
)

// querier 同时由 *sql.DB 和 *sql.Tx 实现，使同一份查询可以在事务内外复用
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
}

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
	}
}

func (r *Repository) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
}

func (r *Repository) txTimeout() time.Duration {
	return time.Duration(r.cfg.Database.TransactionTimeout) * time.Second
}

// InTx 在 fn 返回错误或 panic 时回滚，否则提交
func (r *Repository) InTx(ctx context.Context, fn func(tx participation.Tx) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, r.txTimeout())
	defer cancel()

	sqlTx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(&Tx{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// Tx 是事务内的读写句柄，生命周期由 InTx 管理
type Tx struct {
	q querier
}

var _ participation.Tx = (*Tx)(nil)
var _ participation.Store = (*Repository)(nil)
