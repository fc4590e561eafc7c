package oracle

import (
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"
)

// driverName identifies the driver to the server for session diagnostics.
const driverName = "go-oracle"

// Config carries everything needed to open a connection.
type Config struct {
	// Database is the connect descriptor: an EZ Connect string such as
	// "localhost:1521/XEPDB1", a TNS alias, or a full descriptor.
	Database string
	Username string
	Password string

	// Nonblocking switches the session into non-blocking mode after login.
	// Operations then cooperate with context cancellation; at most one may
	// be in flight per connection at a time.
	Nonblocking bool

	// LongBufferSize caps the fetch buffer for LONG and LONG RAW columns.
	// Zero means the 32 KiB default.
	LongBufferSize int

	// StmtCacheSize bounds the per-connection prepared statement cache.
	// Zero means the default of 64; negative disables caching.
	StmtCacheSize int

	// CallTimeout bounds every native round trip on the connection. Zero
	// means no timeout.
	CallTimeout time.Duration

	// Logger receives structured driver logs. Nil means no logging.
	Logger hclog.Logger

	api nativeAPI
}

const defaultStmtCacheSize = 64

func (cfg *Config) longLimit() int {
	if cfg.LongBufferSize > 0 {
		return cfg.LongBufferSize
	}
	return defaultLongBufferSize
}

func (cfg *Config) stmtCacheSize() int {
	switch {
	case cfg.StmtCacheSize > 0:
		return cfg.StmtCacheSize
	case cfg.StmtCacheSize < 0:
		return 0
	default:
		return defaultStmtCacheSize
	}
}

func (cfg *Config) logger() hclog.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return hclog.NewNullLogger()
}

// ParseDSN splits a "user/password@database" connect string into a Config.
// The password may be empty for external authentication; everything after
// the first '@' is taken verbatim as the connect descriptor.
func ParseDSN(dsn string) (Config, error) {
	creds, db, found := strings.Cut(dsn, "@")
	if !found || db == "" {
		return Config{}, interfaceErr("connect string %q has no database part, expected user/password@database", dsn)
	}
	user, pass, _ := strings.Cut(creds, "/")
	if user == "" {
		return Config{}, interfaceErr("connect string %q has no user part, expected user/password@database", dsn)
	}
	return Config{
		Database: db,
		Username: user,
		Password: pass,
	}, nil
}

// PoolConfig sizes a session pool.
type PoolConfig struct {
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	Min       int `yaml:"min"`
	Max       int `yaml:"max"`
	Increment int `yaml:"increment"`

	Nonblocking    bool          `yaml:"nonblocking"`
	LongBufferSize int           `yaml:"long_buffer_size"`
	StmtCacheSize  int           `yaml:"stmt_cache_size"`
	CallTimeout    time.Duration `yaml:"-"`
}

// UnmarshalYAML decodes the pool configuration, accepting the call timeout
// as a duration string ("30s", "1m30s").
func (cfg *PoolConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain PoolConfig
	if err := value.Decode((*plain)(cfg)); err != nil {
		return err
	}
	var aux struct {
		CallTimeout string `yaml:"call_timeout"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	if aux.CallTimeout != "" {
		d, err := time.ParseDuration(aux.CallTimeout)
		if err != nil {
			return interfaceErr("pool config: bad call_timeout %q", aux.CallTimeout)
		}
		cfg.CallTimeout = d
	}
	return nil
}

// LoadPoolConfig reads a pool configuration from a YAML file.
func LoadPoolConfig(path string) (PoolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PoolConfig{}, err
	}
	var cfg PoolConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return PoolConfig{}, interfaceErr("pool config %s: %v", path, err)
	}
	if err := cfg.validate(); err != nil {
		return PoolConfig{}, err
	}
	return cfg, nil
}

func (cfg *PoolConfig) validate() error {
	if cfg.Database == "" || cfg.Username == "" {
		return interfaceErr("pool config needs database and username")
	}
	if cfg.Max <= 0 {
		return interfaceErr("pool config: max must be positive, got %d", cfg.Max)
	}
	if cfg.Min < 0 || cfg.Min > cfg.Max {
		return interfaceErr("pool config: min %d out of range for max %d", cfg.Min, cfg.Max)
	}
	if cfg.Increment <= 0 {
		cfg.Increment = 1
	}
	return nil
}
