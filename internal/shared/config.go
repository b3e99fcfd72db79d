package shared

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv         string
	HTTPAddr       string
	MetricsAddr    string
	StoreDriver    string // mysql|memory
	MySQLDSN       string
	RedisAddr      string
	RedisDB        int
	RedisPass      string
	CacheTTL       time.Duration
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	SweepWorkers   int
	MaxUploadBytes int64

	Log     LogConfig
	OSS     OSSConfig
	Tracing TracingConfig
}

type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type OSSConfig struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	PublicBaseURL   string
	BasePath        string
}

func (o OSSConfig) Enabled() bool { return o.Endpoint != "" && o.Bucket != "" }

type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	SampleRate  float64
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "prod")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("metrics_addr", ":9100")
	v.SetDefault("store_driver", "mysql")
	v.SetDefault("mysql_dsn", "root:root@tcp(localhost:3306)/inventory?charset=utf8mb4")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("cache_ttl_seconds", 900)
	v.SetDefault("request_timeout_seconds", 15)
	v.SetDefault("rate_limit_rps", 20.0)
	v.SetDefault("rate_limit_burst", 40)
	v.SetDefault("sweep_workers", 8)
	v.SetDefault("max_upload_bytes", 10<<20)

	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 100)
	v.SetDefault("log_max_backups", 5)
	v.SetDefault("log_max_age_days", 30)
	v.SetDefault("log_compress", true)

	v.SetDefault("oss_endpoint", "")
	v.SetDefault("oss_access_key_id", "")
	v.SetDefault("oss_access_key_secret", "")
	v.SetDefault("oss_bucket", "")
	v.SetDefault("oss_public_base_url", "")
	v.SetDefault("oss_base_path", "")

	v.SetDefault("tracing_enabled", false)
	v.SetDefault("tracing_service_name", "hotel-inventory")
	v.SetDefault("tracing_endpoint", "")
	v.SetDefault("tracing_sample_rate", 1.0)
}

// Load reads configuration from the environment (APP_ENV, HTTP_ADDR, ...).
// CONFIG_FILE optionally points at a yaml/json/env file read first.
func Load() Config {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			log.Warn().Err(err).Str("file", file).Msg("config file ignored")
		}
	}

	c := Config{
		AppEnv:         v.GetString("app_env"),
		HTTPAddr:       v.GetString("http_addr"),
		MetricsAddr:    v.GetString("metrics_addr"),
		StoreDriver:    strings.ToLower(v.GetString("store_driver")),
		MySQLDSN:       v.GetString("mysql_dsn"),
		RedisAddr:      v.GetString("redis_addr"),
		RedisPass:      v.GetString("redis_password"),
		RedisDB:        v.GetInt("redis_db"),
		CacheTTL:       time.Duration(v.GetInt("cache_ttl_seconds")) * time.Second,
		RequestTimeout: time.Duration(v.GetInt("request_timeout_seconds")) * time.Second,
		RateLimitRPS:   v.GetFloat64("rate_limit_rps"),
		RateLimitBurst: v.GetInt("rate_limit_burst"),
		SweepWorkers:   v.GetInt("sweep_workers"),
		MaxUploadBytes: v.GetInt64("max_upload_bytes"),
		Log: LogConfig{
			File:       v.GetString("log_file"),
			MaxSizeMB:  v.GetInt("log_max_size_mb"),
			MaxBackups: v.GetInt("log_max_backups"),
			MaxAgeDays: v.GetInt("log_max_age_days"),
			Compress:   v.GetBool("log_compress"),
		},
		OSS: OSSConfig{
			Endpoint:        v.GetString("oss_endpoint"),
			AccessKeyID:     v.GetString("oss_access_key_id"),
			AccessKeySecret: v.GetString("oss_access_key_secret"),
			Bucket:          v.GetString("oss_bucket"),
			PublicBaseURL:   v.GetString("oss_public_base_url"),
			BasePath:        v.GetString("oss_base_path"),
		},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("tracing_enabled"),
			ServiceName: v.GetString("tracing_service_name"),
			Endpoint:    v.GetString("tracing_endpoint"),
			SampleRate:  v.GetFloat64("tracing_sample_rate"),
		},
	}
	if c.SweepWorkers < 1 {
		c.SweepWorkers = 1
	}
	if c.StoreDriver != "mysql" && c.StoreDriver != "memory" {
		log.Warn().Str("store_driver", c.StoreDriver).Msg("unknown STORE_DRIVER, using mysql")
		c.StoreDriver = "mysql"
	}
	if c.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR is empty, catalog cache disabled")
	}
	return c
}
