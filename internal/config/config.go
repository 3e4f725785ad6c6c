package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Log      LogConfig `envPrefix:"LOG_"`
	Database struct {
		DSN                string `env:"DSN,required,notEmpty"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Username string `env:"USERNAME" envDefault:"admin"`
		Password string `env:"PASSWORD,required,notEmpty"`
		FullName string `env:"FULL_NAME" envDefault:"管理员"`
		Email    string `env:"EMAIL,required,notEmpty"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"336"` // 14 天，单位为小时
		Secret     string `env:"SECRET,required,notEmpty"`
	} `envPrefix:"JWT_"`
	Seed struct {
		User struct {
			Password string `env:"PASSWORD" envDefault:"volunteer"`
			Count    int    `env:"COUNT" envDefault:"30"`
		} `envPrefix:"USER_"`
		ActivityCount int `env:"ACTIVITY_COUNT" envDefault:"5"`
	} `envPrefix:"SEED_"`
	Email struct {
		UserDomain string `env:"USER_DOMAIN" envDefault:"example.com"`
		SMTP       struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required,notEmpty"`
		Queue          string `env:"QUEUE" envDefault:"email_queue"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
	} `envPrefix:"REDIS_"`
	Authz struct {
		CacheTTL int `env:"CACHE_TTL" envDefault:"60"` // 秒，0 表示不缓存
	} `envPrefix:"AUTHZ_"`
	Reconciliation ReconciliationConfig `envPrefix:"RECONCILIATION_"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"console"`
}

// ReconciliationConfig 控制后台清理过期报名的定时任务
type ReconciliationConfig struct {
	Enabled   bool `env:"ENABLED" envDefault:"true"`
	Interval  int  `env:"INTERVAL" envDefault:"180"` // 秒
	BatchSize int  `env:"BATCH_SIZE" envDefault:"100"`
	LockTTL   int  `env:"LOCK_TTL" envDefault:"120"` // 秒
	// 一致性检查的间隔，0 表示关闭
	ConsistencyCheckInterval int `env:"CONSISTENCY_CHECK_INTERVAL" envDefault:"3600"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.Reconciliation.Interval <= 0 {
		return fmt.Errorf("RECONCILIATION_INTERVAL 必须为正数，当前为 %d", cfg.Reconciliation.Interval)
	}
	if cfg.Reconciliation.BatchSize <= 0 {
		return fmt.Errorf("RECONCILIATION_BATCH_SIZE 必须为正数，当前为 %d", cfg.Reconciliation.BatchSize)
	}
	if cfg.Reconciliation.LockTTL <= 0 {
		return fmt.Errorf("RECONCILIATION_LOCK_TTL 必须为正数，当前为 %d", cfg.Reconciliation.LockTTL)
	}
	if cfg.Reconciliation.ConsistencyCheckInterval < 0 {
		return fmt.Errorf("RECONCILIATION_CONSISTENCY_CHECK_INTERVAL 不能为负数")
	}
	if cfg.Authz.CacheTTL < 0 {
		return fmt.Errorf("AUTHZ_CACHE_TTL 不能为负数")
	}
	return nil
}
