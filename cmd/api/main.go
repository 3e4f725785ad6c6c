package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/authz"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/config"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/handler"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/logger"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/notify"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/participation"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/repository"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/scheduler"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Error("无法加载配置文件", zap.Error(err))
		os.Exit(1)
	}

	/**********************************************
	 * 创建 logger
	 **********************************************/
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	/**********************************************
	 * 连接数据库
	 **********************************************/
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

	/**********************************************
	 * 创建 repository
	 **********************************************/
	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 确保数据库中存在初始管理员
	 **********************************************/
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(cfg.InitialAdmin.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("无法生成初始管理员密码哈希", zap.Error(err))
		return
	}
	initialAdmin := &domain.User{
		Username:     cfg.InitialAdmin.Username,
		PasswordHash: string(passwordHash),
		FullName:     cfg.InitialAdmin.FullName,
		Email:        cfg.InitialAdmin.Email,
		Role:         domain.RoleAdmin,
	}
	if err := repo.CreateUser(ctx, initialAdmin); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "users_username_key":
			// 数据库中已经存在初始管理员
		default:
			log.Error("无法创建初始管理员", zap.Error(err))
			return
		}
	}

	/**********************************************
	 * 连接 rabbitmq
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		log.Error("无法连接到 rabbitmq", zap.Error(err))
		return
	}
	defer conn.Close()

	// 建立通道
	ch, err := conn.Channel()
	if err != nil {
		log.Error("无法建立通道", zap.Error(err))
		return
	}
	defer ch.Close()

	// 声明队列
	_, err = ch.QueueDeclare(
		cfg.RabbitMQ.Queue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		log.Error("无法声明队列", zap.String("queue", cfg.RabbitMQ.Queue), zap.Error(err))
		return
	}

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:    cfg.Redis.Password,
		DB:          0,
		DialTimeout: time.Duration(cfg.Redis.ConnectTimeout) * time.Second,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		// 权限缓存和分布式锁都可以降级，redis 不可用时只打印警告
		log.Warn("无法连接到 redis", zap.Error(err))
	}

	/**********************************************
	 * 组装业务服务
	 **********************************************/
	operationTimeout := time.Duration(cfg.Redis.OperationExpiration) * time.Second
	gate := authz.NewCachedGate(
		repo,
		authz.NewRedisCache(rdb),
		time.Duration(cfg.Authz.CacheTTL)*time.Second,
		operationTimeout,
		log.Named("authz"),
	)
	publisher := notify.NewPublisher(
		ch,
		repo,
		cfg.RabbitMQ.Queue,
		time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second,
		log.Named("notify"),
	)
	svc := participation.NewService(repo, gate, log.Named("participation"),
		participation.WithNotifier(publisher),
		participation.WithBatchSize(cfg.Reconciliation.BatchSize),
	)

	/**********************************************
	 * 启动后台对账任务
	 **********************************************/
	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	wg := sync.WaitGroup{}

	if cfg.Reconciliation.Enabled {
		sched := scheduler.New(&scheduler.Parameters{
			SweepInterval:            time.Duration(cfg.Reconciliation.Interval) * time.Second,
			ConsistencyCheckInterval: time.Duration(cfg.Reconciliation.ConsistencyCheckInterval) * time.Second,
			LockTTL:                  time.Duration(cfg.Reconciliation.LockTTL) * time.Second,
		}, svc, scheduler.NewRedisLocker(rdb), log.Named("scheduler"))

		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Run(schedCtx)
		}()
	}

	/**********************************************
	 * 创建 handler
	 **********************************************/
	h, err := handler.NewHandler(cfg, repo, svc, log.Named("http"))
	if err != nil {
		log.Error("无法创建 handler", zap.Error(err))
		return
	}
	h.RegisterRoutes()

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	errorLog, err := zap.NewStdLogAt(log, zap.ErrorLevel)
	if err != nil {
		log.Error("无法创建 HTTP 错误日志", zap.Error(err))
		return
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      h.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     errorLog,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("正在启动服务器...", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("无法启动服务器", zap.Error(err))
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	log.Info("正在关闭服务器...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("关闭服务器失败", zap.Error(err))
	}

	// 等待正在进行的对账任务结束
	schedCancel()
	wg.Wait()

	log.Info("服务器已成功关闭")
}
