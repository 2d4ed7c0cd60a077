package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pairlink/internal/domain"
	"pairlink/internal/relay"
	"pairlink/internal/services/pairing"
	"pairlink/internal/services/session"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home       string `mapstructure:"home"` // state directory, e.g. $HOME/.pairlink
	Passphrase string `mapstructure:"passphrase"`

	Relay       string   `mapstructure:"relay"`     // memory, http or libp2p
	RelayURL    string   `mapstructure:"relay_url"` // http relay base URL
	ListenAddrs []string `mapstructure:"listen_addrs"`
	Bootstrap   []string `mapstructure:"bootstrap"`

	ApprovalTimeout time.Duration `mapstructure:"approval_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	PairingExpiry   time.Duration `mapstructure:"pairing_expiry"`
	SessionExpiry   time.Duration `mapstructure:"session_expiry"`
	ProposalExpiry  time.Duration `mapstructure:"proposal_expiry"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`

	LogLevel string          `mapstructure:"log_level"`
	Metadata domain.Metadata `mapstructure:"metadata"`
}

const envPrefix = "PAIRLINK"

// LoadConfig returns a viper instance with defaults, PAIRLINK_* environment
// overrides and, when path is non-empty, the YAML file at path.
func LoadConfig(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		return v, nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if errors.As(err, &nf) || errors.Is(err, os.ErrNotExist) {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}
	return v, nil
}

// ParseConfig decodes v into a Config and fills in the home directory.
func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if c.Home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		c.Home = filepath.Join(dir, ".pairlink")
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("home", "")
	v.SetDefault("passphrase", "")
	v.SetDefault("relay", relay.ProtocolHTTP)
	v.SetDefault("relay_url", "http://127.0.0.1:8080")
	v.SetDefault("listen_addrs", []string{})
	v.SetDefault("bootstrap", []string{})
	v.SetDefault("approval_timeout", pairing.DefaultApprovalTimeout)
	v.SetDefault("request_timeout", session.DefaultRequestTimeout)
	v.SetDefault("pairing_expiry", pairing.DefaultExpiry)
	v.SetDefault("session_expiry", session.DefaultExpiry)
	v.SetDefault("proposal_expiry", session.DefaultProposalExpiry)
	v.SetDefault("sweep_interval", pairing.DefaultSweepInterval)
	v.SetDefault("log_level", "info")
	v.SetDefault("metadata.name", "pairlink")
	v.SetDefault("metadata.description", "")
	v.SetDefault("metadata.url", "")
	v.SetDefault("metadata.icons", []string{})
}
