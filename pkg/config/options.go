// Package config holds the connection options surface: the parsed form of
// a connection URL, the pool tuning knobs, and the yaml config consumed by
// the offline verification tool.
package config

import (
	"time"

	"github.com/wireql/wireql/pkg/sqlerr"
)

// SSLMode controls the level of transport protection requested from the
// backend, following the libpq option values.
type SSLMode int

const (
	SSLDisable SSLMode = iota
	SSLAllow
	SSLPrefer
	SSLRequire
	SSLVerifyCA
	SSLVerifyFull
)

func (m SSLMode) String() string {
	switch m {
	case SSLDisable:
		return "disable"
	case SSLAllow:
		return "allow"
	case SSLPrefer:
		return "prefer"
	case SSLRequire:
		return "require"
	case SSLVerifyCA:
		return "verify-ca"
	case SSLVerifyFull:
		return "verify-full"
	default:
		return "prefer"
	}
}

func ParseSSLMode(s string) (SSLMode, error) {
	switch s {
	case "disable":
		return SSLDisable, nil
	case "allow":
		return SSLAllow, nil
	case "prefer":
		return SSLPrefer, nil
	case "require":
		return SSLRequire, nil
	case "verify-ca":
		return SSLVerifyCA, nil
	case "verify-full":
		return SSLVerifyFull, nil
	default:
		return 0, sqlerr.Newf(sqlerr.KindConfig, "unknown sslmode value %q", s)
	}
}

const (
	DefaultStatementCacheCapacity = 100
	DefaultConnectTimeout         = 10 * time.Second
)

// Options is the parsed form of one connection URL plus the per-connection
// tuning knobs. Scheme selects the backend driver.
type Options struct {
	Scheme     string
	Host       string
	Port       uint16
	Username   string
	Password   string
	Database   string
	SocketPath string

	SSLMode     SSLMode
	SSLRootCert string

	StatementCacheCapacity int
	ConnectTimeout         time.Duration

	// Params carries backend-specific flags the core does not interpret.
	Params map[string]string
}

// NewOptions returns Options with the documented defaults applied.
func NewOptions() *Options {
	return &Options{
		SSLMode:                SSLPrefer,
		StatementCacheCapacity: DefaultStatementCacheCapacity,
		ConnectTimeout:         DefaultConnectTimeout,
		Params:                 make(map[string]string),
	}
}

// PoolConfig enumerates the pool tuning surface.
type PoolConfig struct {
	MinConns          int           `yaml:"min_connections"`
	MaxConns          int           `yaml:"max_connections"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	AcquireTimeout    time.Duration `yaml:"acquire_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	MaxLifetime       time.Duration `yaml:"max_lifetime"`
	TestBeforeAcquire bool          `yaml:"test_before_acquire"`
}
