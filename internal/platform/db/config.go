package db

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"

	DefaultConfigPath = "config/config.yaml"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite3 | mysql
	Path     string `yaml:"path"`   // sqlite3 のみ
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	AdminUser     string `yaml:"admin_user"`
	AdminPassword string `yaml:"admin_password"`
	PurgePIN      string `yaml:"purge_pin"`
}

type CaptureConfig struct {
	Source      string        `yaml:"source"` // mjpeg | dir
	URL         string        `yaml:"url"`
	Dir         string        `yaml:"dir"`
	Interval    time.Duration `yaml:"interval"`
	OpenTimeout time.Duration `yaml:"open_timeout"` // mjpeg: レスポンスヘッダ受信までの上限
}

type ArtifactConfig struct {
	Dir      string `yaml:"dir"`
	ModulePx int    `yaml:"module_px"`
	Level    string `yaml:"level"` // L | M | Q | H
}

type ExportConfig struct {
	Dir      string `yaml:"dir"`
	Encoding string `yaml:"encoding"` // utf-8 | utf-8-bom | shift_jis
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type Config struct {
	Version     string         `yaml:"version"`
	Mode        string         `yaml:"mode"`
	Server      ServerConfig   `yaml:"server"`
	Certificate Certs          `yaml:"certificate"`
	DB          DatabaseConfig `yaml:"database"`
	Auth        AuthConfig     `yaml:"auth"`
	Capture     CaptureConfig  `yaml:"capture"`
	Artifacts   ArtifactConfig `yaml:"artifacts"`
	Export      ExportConfig   `yaml:"export"`
	Cache       CacheConfig    `yaml:"cache"`
}

// LoadConfig: YAML を読み込み、.env / 環境変数で秘密情報を上書きし、未設定項目に既定値を入れる。
// ファイルが存在しない場合は既定値のみで起動する。
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	buf, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルのパース失敗: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		log.Printf("[WARN] config %s not found, using defaults", path)
	default:
		return nil, fmt.Errorf("設定ファイルの読み込み失敗: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] .env: %v", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"ATTENDANCE_MODE", &cfg.Mode},
		{"ATTENDANCE_DB_PASSWORD", &cfg.DB.Password},
		{"ATTENDANCE_JWT_SECRET", &cfg.Auth.JWTSecret},
		{"ATTENDANCE_ADMIN_PASSWORD", &cfg.Auth.AdminPassword},
		{"ATTENDANCE_PURGE_PIN", &cfg.Auth.PurgePIN},
		{"ATTENDANCE_CAPTURE_URL", &cfg.Capture.URL},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			*o.dst = v
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = "release"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = DriverSQLite
	}
	if cfg.DB.Driver == DriverSQLite && cfg.DB.Path == "" {
		cfg.DB.Path = "attendance.db"
	}
	if cfg.DB.Driver == DriverMySQL && cfg.DB.Port == 0 {
		cfg.DB.Port = 3306
	}
	if cfg.Auth.AdminUser == "" {
		cfg.Auth.AdminUser = "admin"
	}
	if cfg.Capture.Source == "" {
		cfg.Capture.Source = "mjpeg"
	}
	if cfg.Capture.Interval <= 0 {
		cfg.Capture.Interval = 100 * time.Millisecond
	}
	if cfg.Capture.OpenTimeout <= 0 {
		cfg.Capture.OpenTimeout = 10 * time.Second
	}
	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = "qrcodes"
	}
	if cfg.Artifacts.ModulePx <= 0 {
		cfg.Artifacts.ModulePx = 10
	}
	if cfg.Artifacts.Level == "" {
		cfg.Artifacts.Level = "L"
	}
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = "exports"
	}
	if cfg.Export.Encoding == "" {
		cfg.Export.Encoding = "utf-8"
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = 2 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Mode != "dev" && c.Mode != "release" {
		return fmt.Errorf("mode must be dev or release: %q", c.Mode)
	}
	switch c.DB.Driver {
	case DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("unsupported database driver: %q", c.DB.Driver)
	}
	switch c.Capture.Source {
	case "mjpeg", "dir":
	default:
		return fmt.Errorf("unsupported capture source: %q", c.Capture.Source)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (or ATTENDANCE_JWT_SECRET) is required")
	}
	return nil
}
