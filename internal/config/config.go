package config

import (
	"errors"
	"flag"
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	StorageTypeMemory = "memory"
	StorageTypeFile   = "file"
	StorageTypeRedis  = "redis"
)

type Config struct {
	API         APIConfig         `yaml:"api"`
	Storage     StorageConfig     `yaml:"storage"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Env         string            `yaml:"env" env:"ENV" env-default:"local"`
}

type APIConfig struct {
	BaseURL        string        `yaml:"base_url" env:"API_BASE_URL" env-default:"https://api.zentry.com"`
	LoginPath      string        `yaml:"login_path" env:"API_LOGIN_PATH" env-default:"/api/authentication/login"`
	RefreshPath    string        `yaml:"refresh_path" env:"API_REFRESH_PATH" env-default:"/api/authentication/refresh"`
	LogoutPath     string        `yaml:"logout_path" env:"API_LOGOUT_PATH" env-default:"/api/authentication/logout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"API_CONNECT_TIMEOUT" env-default:"30s"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"API_READ_TIMEOUT" env-default:"30s"`
}

// Endpoint joins the base URL and a path.
func (c APIConfig) Endpoint(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

type StorageConfig struct {
	Type  string       `yaml:"type" env:"STORAGE_TYPE" env-default:"file"`
	File  StorageFile  `yaml:"file"`
	Redis StorageRedis `yaml:"redis"`
}

type StorageFile struct {
	Path   string `yaml:"path" env:"STORAGE_FILE_PATH" env-default:"./auth_prefs.json"`
	Secret string `yaml:"secret" env:"STORAGE_FILE_SECRET"`
}

type StorageRedis struct {
	Host        string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port        string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password    string `yaml:"password" env:"REDIS_PASSWORD"`
	DB          int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Namespace   string `yaml:"namespace" env:"REDIS_NAMESPACE" env-default:"auth_prefs"`
	MaxAttempts int    `yaml:"max_attempts" env:"REDIS_MAX_ATTEMPTS" env-default:"5"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"false"`
	Port    int    `yaml:"port" env:"METRICS_PORT" env-default:"9102"`
	Path    string `yaml:"path" env:"METRICS_PATH" env-default:"/metrics"`
}

type CredentialsConfig struct {
	UserName   string `yaml:"user_name" env:"ZENTRY_USER_NAME"`
	Password   string `yaml:"password" env:"ZENTRY_PASSWORD"`
	RememberMe bool   `yaml:"remember_me" env:"ZENTRY_REMEMBER_ME" env-default:"true"`
}

const (
	flagConfigPath = "config"
	envConfigPath  = "CONFIG_PATH"
)

var instance *Config
var once sync.Once

func GetConfig() *Config {
	once.Do(func() {
		var configPath string
		flag.StringVar(&configPath, flagConfigPath, "", "config file path")
		flag.Parse()

		if path, ok := os.LookupEnv(envConfigPath); ok {
			configPath = path
		}

		cfg, err := Load(configPath)
		if err != nil {
			if configPath != "" {
				desc, errDesc := cleanenv.GetDescription(&Config{}, nil)
				if errDesc == nil {
					slog.Info(desc)
				}
			}
			slog.Error("failed to load config",
				slog.String("error", err.Error()),
				slog.String("path", configPath))
			os.Exit(1)
		}
		instance = cfg
	})
	return instance
}

// Load reads the yaml file at path (if any), then the environment, which
// takes priority, and validates the result.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	cfg := &Config{}
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("%s: read %s: %w", op, path, err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("%s: read env: %w", op, err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api base url %q", cfg.API.BaseURL)
	}
	if cfg.API.LoginPath == "" {
		return errors.New("api login path is required")
	}
	if cfg.API.RefreshPath == "" {
		return errors.New("api refresh path is required")
	}

	switch cfg.Storage.Type {
	case StorageTypeMemory, StorageTypeRedis:
	case StorageTypeFile:
		if cfg.Storage.File.Path == "" {
			return errors.New("storage file path is required")
		}
	default:
		return fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
	return nil
}
