package config

import (
	"strings"
	"time"

	"github.com/Mieluoxxx/Lumina-API/internal/storage"
	"github.com/spf13/viper"
)

// ServerConfig 服务器配置
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig 数据库配置
// Driver 为 sqlite 时使用 Path，为 postgres 时使用 DSN
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RunnerConfig GPU 任务运行器配置
type RunnerConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	SubmitTimeout time.Duration `mapstructure:"submit_timeout"`
}

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Runner   RunnerConfig   `mapstructure:"runner"`
	Storage  storage.Config `mapstructure:"storage"`
}

// LoadConfig 加载配置
// 以默认值为底，可选的 yaml 配置文件覆盖默认值，
// LUMINA_ 前缀的环境变量再覆盖文件（如 LUMINA_DATABASE_PATH）
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/lumina.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("runner.base_url", "http://localhost:8100")
	v.SetDefault("runner.submit_timeout", 30*time.Second)
	// 空默认值也要注册，否则 AutomaticEnv 的键不会进入 Unmarshal
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "")

	v.SetEnvPrefix("LUMINA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
