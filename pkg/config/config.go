package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// devJWTSecret 是 config.yaml 內附的開發用密鑰
const devJWTSecret = "dev-jwt-secret-change-me"

type Config struct {
	Env       string
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Realtime  RealtimeConfig
	Log       LogConfig
	Admin     AdminConfig
}

type ServerConfig struct {
	Address         string
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DBConfig struct {
	Driver   string // postgres 或 sqlite
	Host     string
	User     string
	Password string
	Name     string
	Port     int
	Path     string // sqlite 檔案路徑
}

type RedisConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// RateLimitConfig 房間列表／建立的固定窗口限流設定
type RateLimitConfig struct {
	ReadLimit  int           `mapstructure:"read_limit"`
	WriteLimit int           `mapstructure:"write_limit"`
	Window     time.Duration `mapstructure:"window"`
}

// RealtimeConfig 即時推送設定
// Mode: off（不推送）、local（單機 hub）、redis（透過 redis pub/sub 廣播）
type RealtimeConfig struct {
	Mode           string
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

type LogConfig struct {
	Level string
}

// AdminConfig 啟動時建立的客服帳號，帳號或密碼為空時不建立
type AdminConfig struct {
	Username string
	Password string
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load 讀取設定檔，並允許以 SUPPORT_CHAT_ 開頭的環境變數覆寫
func Load() (*Config, error) {
	// 開發環境下載入 .env（檔案不存在時忽略）
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./pkg/config")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("support_chat")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if !config.IsDevelopment() && (config.JWT.Secret == "" || config.JWT.Secret == devJWTSecret) {
		return nil, errors.New("jwt.secret is required outside development")
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.path", "./data/support_chat.db")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 240*time.Hour)

	v.SetDefault("rate_limit.read_limit", 60)
	v.SetDefault("rate_limit.write_limit", 30)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("realtime.mode", "local")
	v.SetDefault("realtime.publish_timeout", 3*time.Second)

	v.SetDefault("log.level", "info")

	v.SetDefault("admin.username", "")
	v.SetDefault("admin.password", "")
}
