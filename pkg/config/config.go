// Package config 提供 TOML 配置加载、环境变量覆盖与校验
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 定价服务配置
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置
	HTTP HTTPConfig `mapstructure:"http"`
	// 数据库配置
	Database DatabaseConfig `mapstructure:"database"`
	// Redis 配置
	Redis RedisConfig `mapstructure:"redis"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
	// 限流配置
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	// 蒙特卡洛引擎配置
	MonteCarlo MonteCarloConfig `mapstructure:"montecarlo"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒），需覆盖最长的定价请求
	WriteTimeout int `mapstructure:"write_timeout"`
	// 优雅关闭等待时间（秒）
	ShutdownTimeout int `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置，DSN 为空时不持久化定价历史
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogEnabled      bool   `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int  `mapstructure:"slow_query_threshold"`
	AutoMigrate        bool `mapstructure:"auto_migrate"`
}

// Enabled 是否配置了数据库
func (c DatabaseConfig) Enabled() bool { return c.DSN != "" }

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	MaxPoolSize  int    `mapstructure:"max_pool_size"`
	ConnTimeout  int    `mapstructure:"conn_timeout"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	// 定价结果缓存时间（秒）
	ResultTTL int `mapstructure:"result_ttl"`
}

// KafkaConfig Kafka 配置，Brokers 为空时不发布事件也不消费请求
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	// 定价事件主题
	Topic string `mapstructure:"topic"`
	// 异步定价请求主题，为空时不启动消费者
	RequestTopic string `mapstructure:"request_topic"`
	// 处理失败的请求写入的死信主题
	DeadLetterTopic string `mapstructure:"dead_letter_topic"`
	GroupID         string `mapstructure:"group_id"`
	SessionTimeout  int    `mapstructure:"session_timeout"`
	MaxRetries      int    `mapstructure:"max_retries"`
	RetryBackoff    int    `mapstructure:"retry_backoff"`
}

// Enabled 是否配置了 Kafka
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	WithCaller bool   `mapstructure:"with_caller"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// RateLimitConfig 限流配置，需要 Redis
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	QPS     int  `mapstructure:"qps"`
	Burst   int  `mapstructure:"burst"`
	// 批量与收敛分析路由每次请求消耗的令牌数
	BatchCost       int `mapstructure:"batch_cost"`
	ConvergenceCost int `mapstructure:"convergence_cost"`
}

// MaxCost 单次请求可能消耗的最大令牌数，burst 不能小于它
func (c RateLimitConfig) MaxCost() int {
	return max(1, c.BatchCost, c.ConvergenceCost)
}

// MonteCarloConfig 蒙特卡洛引擎配置
type MonteCarloConfig struct {
	// 并行 worker 数，0 表示使用 CPU 核数
	Workers int `mapstructure:"workers"`
	// 请求未指定时的模拟次数
	DefaultReplications int `mapstructure:"default_replications"`
	// 单次请求允许的最大模拟次数
	MaxReplications int `mapstructure:"max_replications"`
	// 单条路径允许的最大步数
	MaxSteps int `mapstructure:"max_steps"`
	// 单个批量请求的合约数上限
	MaxBatchSize int `mapstructure:"max_batch_size"`
	// 收敛分析的模拟次数档位上限
	MaxConvergenceCounts int `mapstructure:"max_convergence_counts"`
	// 检查取消信号的间隔
	CheckpointInterval int `mapstructure:"checkpoint_interval"`
	// 随机数流模式：per_worker 或 shared
	StreamMode string `mapstructure:"stream_mode"`
}

// Load 从 TOML 文件加载配置，支持 APP_ 前缀环境变量覆盖
// configPath 为空时只使用默认值和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.Database.Enabled() && c.Database.Driver != "mysql" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.RateLimit.Enabled {
		rl := c.RateLimit
		if !c.Redis.Enabled {
			return errors.New("rate_limit requires redis")
		}
		if rl.QPS <= 0 || rl.BatchCost < 1 || rl.ConvergenceCost < 1 {
			return fmt.Errorf("invalid rate_limit: qps=%d batch_cost=%d convergence_cost=%d", rl.QPS, rl.BatchCost, rl.ConvergenceCost)
		}
		if rl.Burst < rl.MaxCost() {
			return fmt.Errorf("rate_limit burst %d is below the largest route cost %d", rl.Burst, rl.MaxCost())
		}
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return errors.New("kafka topic is required when brokers are set")
	}

	mc := c.MonteCarlo
	if mc.Workers < 0 {
		return fmt.Errorf("invalid montecarlo workers: %d", mc.Workers)
	}
	if mc.DefaultReplications <= 0 {
		return fmt.Errorf("invalid montecarlo default_replications: %d", mc.DefaultReplications)
	}
	if mc.MaxReplications < mc.DefaultReplications {
		return fmt.Errorf("montecarlo max_replications %d is below default_replications %d", mc.MaxReplications, mc.DefaultReplications)
	}
	if mc.MaxSteps <= 0 {
		return fmt.Errorf("invalid montecarlo max_steps: %d", mc.MaxSteps)
	}
	if mc.MaxBatchSize <= 0 {
		return fmt.Errorf("invalid montecarlo max_batch_size: %d", mc.MaxBatchSize)
	}
	if mc.MaxConvergenceCounts <= 0 {
		return fmt.Errorf("invalid montecarlo max_convergence_counts: %d", mc.MaxConvergenceCounts)
	}
	if mc.StreamMode != "per_worker" && mc.StreamMode != "shared" {
		return fmt.Errorf("invalid montecarlo stream_mode: %q", mc.StreamMode)
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "pricing")
	v.SetDefault("version", "dev")
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 120)
	v.SetDefault("http.shutdown_timeout", 15)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)
	v.SetDefault("redis.result_ttl", 900)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "pricing-events")
	v.SetDefault("kafka.request_topic", "")
	v.SetDefault("kafka.dead_letter_topic", "pricing-requests-dlq")
	v.SetDefault("kafka.group_id", "optionpricer")
	v.SetDefault("kafka.session_timeout", 30)
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/pricing.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.qps", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("rate_limit.batch_cost", 5)
	v.SetDefault("rate_limit.convergence_cost", 10)

	v.SetDefault("montecarlo.workers", 0)
	v.SetDefault("montecarlo.default_replications", 1000)
	v.SetDefault("montecarlo.max_replications", 10000000)
	v.SetDefault("montecarlo.max_steps", 10000)
	v.SetDefault("montecarlo.max_batch_size", 100)
	v.SetDefault("montecarlo.max_convergence_counts", 20)
	v.SetDefault("montecarlo.checkpoint_interval", 256)
	v.SetDefault("montecarlo.stream_mode", "per_worker")
}

// GetEnv 获取环境变量，支持默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
