package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/config"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/logger"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/repository"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var activityID int64

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机志愿者, 2: 插入随机组织者, 3: 插入随机活动及班次, 4: 为活动插入随机报名)")
	flag.IntVar(&n, "n", 0, "要插入的记录数量，为 0 时使用配置中的数量")
	flag.Int64Var(&activityID, "activity-id", 0, "插入报名记录的活动 ID")
	flag.Parse()

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Error("无法读取配置文件", zap.Error(err))
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		log.Error("无法创建数据库连接池", zap.Error(err))
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		log.Error("无法连接到数据库", zap.Error(err))
		return
	}

	if err := repository.RunMigrations(dbpool, log); err != nil {
		log.Error("数据库迁移失败", zap.Error(err))
		return
	}

	repo := repository.NewRepository(cfg, dbpool)
	seeder := seed.New(cfg, repo, log)

	// 种子数据可能需要较长时间，不使用连接超时的 ctx
	ctx = context.Background()

	switch op {
	case 0:
		log.Error("未指定操作")
	case 1:
		if n <= 0 {
			n = cfg.Seed.User.Count
		}
		log.Info("插入志愿者成功", zap.Int("count", seeder.SeedUsers(ctx, n, domain.RoleVolunteer)))
	case 2:
		if n <= 0 {
			n = 3
		}
		log.Info("插入组织者成功", zap.Int("count", seeder.SeedUsers(ctx, n, domain.RoleOrganizer)))
	case 3:
		if n <= 0 {
			n = cfg.Seed.ActivityCount
		}
		cnt, err := seeder.SeedActivities(ctx, n)
		if err != nil {
			log.Error("无法插入活动", zap.Error(err))
			return
		}
		log.Info("插入活动成功", zap.Int("count", cnt))
	case 4:
		if activityID <= 0 {
			log.Error("请输入合法的活动 ID")
			return
		}
		cnt, err := seeder.SeedParticipations(ctx, activityID)
		if err != nil {
			log.Error("无法插入报名记录", zap.Error(err))
			return
		}
		log.Info("插入报名记录成功", zap.Int("count", cnt))
	default:
		log.Error("指定的操作非法")
	}
}
