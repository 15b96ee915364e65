package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 服务全量配置；文件 + 环境变量（BROADCAST_ 前缀）加载
type Config struct {
	Server struct {
		Port int    `mapstructure:"port"`
		Mode string `mapstructure:"mode"` // debug / release
	} `mapstructure:"server"`

	Database struct {
		Driver       string `mapstructure:"driver"` // postgres / sqlite
		DSN          string `mapstructure:"dsn"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"database"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Check struct {
		StepQuota int           `mapstructure:"step_quota"`
		StateTTL  time.Duration `mapstructure:"state_ttl"`
		// StepRate 每秒允许的 step 调用次数（维护接口限流）
		StepRate float64 `mapstructure:"step_rate"`
	} `mapstructure:"check"`

	Propagator struct {
		Workers      int           `mapstructure:"workers"`
		ClaimLimit   int           `mapstructure:"claim_limit"`
		PollInterval time.Duration `mapstructure:"poll_interval"`
	} `mapstructure:"propagator"`

	Auth struct {
		JWTSecret         string        `mapstructure:"jwt_secret"`
		TokenTTL          time.Duration `mapstructure:"token_ttl"`
		AdminUser         string        `mapstructure:"admin_user"`
		AdminPasswordHash string        `mapstructure:"admin_password_hash"` // bcrypt
	} `mapstructure:"auth"`

	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`

	Trace struct {
		Enabled  bool   `mapstructure:"enabled"`
		Endpoint string `mapstructure:"endpoint"`
	} `mapstructure:"trace"`

	Sentry struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"sentry"`
}

// Load 读取 ./config.yaml（可缺省）并叠加环境变量
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "broadcast.db")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("check.step_quota", 100)
	v.SetDefault("check.state_ttl", "24h")
	v.SetDefault("check.step_rate", 10)
	v.SetDefault("propagator.workers", 2)
	v.SetDefault("propagator.claim_limit", 32)
	v.SetDefault("propagator.poll_interval", "200ms")
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("auth.admin_user", "admin")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("BROADCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 配置文件可缺省，环境变量与默认值兜底
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
