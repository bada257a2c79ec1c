package remote

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// DefaultPort is the control port used when Config.Port is zero.
const DefaultPort = 21

// DefaultTimeout bounds dial, login and data-connection setup when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config describes how to reach and authenticate against the FTP endpoint.
type Config struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"min=0,max=65535"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// UseTLS upgrades the control connection with AUTH TLS (explicit FTPS).
	UseTLS             bool          `mapstructure:"ssl"`
	InsecureSkipVerify bool          `mapstructure:"tls_insecure_skip_verify"`
	Passive            bool          `mapstructure:"passive"`
	Timeout            time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// Address returns the host:port pair to dial.
func (c Config) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(strings.TrimSpace(c.Host), strconv.Itoa(port))
}

// EffectiveTimeout returns Timeout or DefaultTimeout when unset.
func (c Config) EffectiveTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}
