package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
)

// EnvPath 覆寫設定檔路徑的環境變數
const EnvPath = "LEDGER_CONFIG"

// DefaultPath 預設設定檔路徑
const DefaultPath = "config/config.yaml"

// Backend 帳本實作
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendMySQL  Backend = "mysql"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Accounts  AccountsConfig  `yaml:"accounts"`
	Log       LogConfig       `yaml:"log"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	MySQL     mysql.Config    `yaml:"mysql"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LedgerConfig struct {
	Backend         Backend       `yaml:"backend"`
	WALPath         string        `yaml:"walPath"`
	LockTimeout     time.Duration `yaml:"lockTimeout"`
	AuditRejections bool          `yaml:"auditRejections"`
}

type AccountsConfig struct {
	// MinOpeningBalance 以字串表示的十進位金額
	MinOpeningBalance string `yaml:"minOpeningBalance"`
	NumberAttempts    int    `yaml:"numberAttempts"`
}

// MinOpening 解析後的最低開戶金額，需先通過 Validate
func (a AccountsConfig) MinOpening() decimal.Decimal {
	d, err := decimal.NewFromString(a.MinOpeningBalance)
	if err != nil {
		return decimal.Zero
	}
	return d
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type ReconcileConfig struct {
	// Schedule cron 表示式，空字串表示不排程
	Schedule string `yaml:"schedule"`
}

// Load 讀取設定檔，路徑優先使用 LEDGER_CONFIG
func Load() (Config, error) {
	path := os.Getenv(EnvPath)
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path)
}

// LoadFile 讀取並驗證指定設定檔
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse 解析 YAML，補全預設值後驗證
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyDefaults 補全未設定的欄位
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":50051"
	}
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = BackendMemory
	}
	if c.Ledger.WALPath == "" {
		c.Ledger.WALPath = "wal.log"
	}
	if c.Ledger.LockTimeout == 0 {
		c.Ledger.LockTimeout = 5 * time.Second
	}
	if c.Accounts.MinOpeningBalance == "" {
		c.Accounts.MinOpeningBalance = "10000"
	}
	if c.Accounts.NumberAttempts == 0 {
		c.Accounts.NumberAttempts = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.MySQL.ApplyDefaults()
}

// Validate 檢查設定值是否可用
func (c *Config) Validate() error {
	var errs []error
	switch c.Ledger.Backend {
	case BackendMemory, BackendMySQL:
	default:
		errs = append(errs, fmt.Errorf("ledger.backend: unknown backend %q", c.Ledger.Backend))
	}
	if c.Ledger.LockTimeout < 0 {
		errs = append(errs, errors.New("ledger.lockTimeout: must not be negative"))
	}
	minOpening, err := decimal.NewFromString(c.Accounts.MinOpeningBalance)
	if err != nil {
		errs = append(errs, fmt.Errorf("accounts.minOpeningBalance: %w", err))
	} else if minOpening.IsNegative() {
		errs = append(errs, errors.New("accounts.minOpeningBalance: must not be negative"))
	}
	if c.Accounts.NumberAttempts < 1 {
		errs = append(errs, errors.New("accounts.numberAttempts: must be at least 1"))
	}
	if c.Reconcile.Schedule != "" {
		if _, err := cron.ParseStandard(c.Reconcile.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("reconcile.schedule: %w", err))
		}
	}
	if c.Ledger.Backend == BackendMySQL && c.MySQL.Host == "" {
		errs = append(errs, errors.New("mysql.host: required for mysql backend"))
	}
	return errors.Join(errs...)
}
