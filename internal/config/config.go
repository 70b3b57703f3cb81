package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/allocator"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"60"` // 生成分组可能需要较长时间
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Username string `env:"USERNAME" envDefault:"admin"`
		Password string `env:"PASSWORD,required"`
		FullName string `env:"FULL_NAME" envDefault:"管理员"`
		Email    string `env:"EMAIL,required"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"336"` // 小时，14 天
		Secret     string `env:"SECRET,required"`
	} `envPrefix:"JWT_"`
	Seed struct {
		User struct {
			Password string `env:"PASSWORD" envDefault:"allocator@test"`
		} `envPrefix:"USER_"`
	} `envPrefix:"SEED_"`
	Email struct {
		UserDomain string `env:"USER_DOMAIN" envDefault:"example.com"`
		SMTP       struct {
			Username    string `env:"USERNAME,required"`
			Password    string `env:"PASSWORD,required"`
			Host        string `env:"HOST,required"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		MailQueue      string `env:"MAIL_QUEUE" envDefault:"email_queue"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD,required"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
	} `envPrefix:"REDIS_"`
	NewUser struct {
		PasswordLength int `env:"PASSWORD_LENGTH" envDefault:"12"`
	} `envPrefix:"NEW_USER_"`
	Allocator AllocatorConfig `envPrefix:"ALLOCATOR_"`
}

// 模拟退火的默认参数，请求中没有给出的参数使用这里的值
type AllocatorConfig struct {
	InitialTemperature float64 `env:"INITIAL_TEMPERATURE" envDefault:"1.0"`
	CoolingFactor      float64 `env:"COOLING_FACTOR" envDefault:"0.99"`
	Threshold          float64 `env:"THRESHOLD" envDefault:"0.001"`
	PenaltyWeight      float64 `env:"PENALTY_WEIGHT" envDefault:"100"`
	Boltzmann          float64 `env:"BOLTZMANN" envDefault:"20"`
	MaxIterations      int     `env:"MAX_ITERATIONS" envDefault:"0"`
	RemainderPolicy    string  `env:"REMAINDER_POLICY" envDefault:"last"`
	IterationLimit     int     `env:"ITERATION_LIMIT" envDefault:"5000000"` // 一次请求最多允许的迭代次数
	RecordTrajectory   bool    `env:"RECORD_TRAJECTORY" envDefault:"true"`
	TrajectoryLimit    int     `env:"TRAJECTORY_LIMIT" envDefault:"100000"` // 迭代次数超过它时不记录轨迹
	LockExpiration     int     `env:"LOCK_EXPIRATION" envDefault:"120"` // 秒
}

func (c AllocatorConfig) Parameters() *allocator.Parameters {
	return &allocator.Parameters{
		InitialTemperature: c.InitialTemperature,
		CoolingFactor:      c.CoolingFactor,
		Threshold:          c.Threshold,
		PenaltyWeight:      c.PenaltyWeight,
		Boltzmann:          c.Boltzmann,
		MaxIterations:      c.MaxIterations,
		RemainderPolicy:    allocator.RemainderPolicy(c.RemainderPolicy),
	}
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

	return cfg, nil
}

// LoadAllocatorConfig 只读取 ALLOCATOR_ 开头的环境变量，给不需要连接数据库的命令行工具使用
func LoadAllocatorConfig() (*AllocatorConfig, error) {
	cfg := &AllocatorConfig{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "ALLOCATOR_"}); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	return cfg, nil
}
