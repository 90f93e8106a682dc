// Package config loads service options from command-line flags, environment
// variables and an optional JSON or YAML config file. Flags win over the
// environment, which wins over the file.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Options holds the configuration values for the application.
type Options struct {
	// ServerAddress is the HTTP listening address (ip:port).
	ServerAddress string `mapstructure:"server_address" json:"server_address"`

	// GRPCAddress enables the gRPC listener when not empty.
	GRPCAddress string `mapstructure:"grpc_address" json:"grpc_address"`

	// FilePath is the journal replayed into the in-memory registry.
	FilePath string `mapstructure:"file_storage_path" json:"file_storage_path"`

	// JournalFlushInterval is how often a partial journal batch is written.
	JournalFlushInterval time.Duration `mapstructure:"journal_flush_interval" json:"journal_flush_interval"`

	DatabaseDSN string `mapstructure:"database_dsn" json:"database_dsn"`
	RedisAddr   string `mapstructure:"redis_addr" json:"redis_addr"`
	BoltPath    string `mapstructure:"bolt_path" json:"bolt_path"`

	// ResolveTimeout bounds the host lookup done for every submission.
	ResolveTimeout time.Duration `mapstructure:"resolve_timeout" json:"resolve_timeout"`

	LogLevel  string `mapstructure:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" json:"log_format"`

	// TrustedSubnet is a CIDR allowed to read internal stats.
	TrustedSubnet string `mapstructure:"trusted_subnet" json:"trusted_subnet"`

	EnablePprof bool `mapstructure:"enable_pprof" json:"enable_pprof"`
	EnableHTTPS bool `mapstructure:"enable_https" json:"enable_https"`

	// Config is the path of the config file, if any.
	Config string `mapstructure:"config" json:"-"`
}

type option struct {
	key   string
	short string
	env   string
	def   any
	usage string
}

var options = []option{
	{"server_address", "a", "SERVER_ADDRESS", "localhost:8080", "run on ip:port server"},
	{"grpc_address", "g", "GRPC_ADDRESS", "", "gRPC ip:port, empty disables gRPC"},
	{"file_storage_path", "f", "FILE_STORAGE_PATH", "", "path to journal file for in-memory storage"},
	{"journal_flush_interval", "i", "JOURNAL_FLUSH_INTERVAL", 10 * time.Second, "how often buffered journal records are written"},
	{"database_dsn", "d", "DATABASE_DSN", "", "postgres dsn"},
	{"redis_addr", "r", "REDIS_ADDR", "", "redis address"},
	{"bolt_path", "o", "BOLT_PATH", "", "path to bbolt database file"},
	{"resolve_timeout", "t", "RESOLVE_TIMEOUT", 3 * time.Second, "host lookup timeout"},
	{"log_level", "l", "LOG_LEVEL", "info", "log level"},
	{"log_format", "", "LOG_FORMAT", "json", "log format: json or console"},
	{"trusted_subnet", "n", "TRUSTED_SUBNET", "", "CIDR allowed to read internal stats"},
	{"enable_pprof", "p", "ENABLE_PPROF", false, "enable pprof on localhost:6060"},
	{"enable_https", "s", "ENABLE_HTTPS", false, "enable https"},
	{"config", "c", "CONFIG", "", "path to config file (json or yaml)"},
}

// BindFlags registers every option on fs.
func BindFlags(fs *pflag.FlagSet) {
	for _, o := range options {
		switch def := o.def.(type) {
		case string:
			fs.StringP(o.key, o.short, def, o.usage)
		case bool:
			fs.BoolP(o.key, o.short, def, o.usage)
		case time.Duration:
			fs.DurationP(o.key, o.short, def, o.usage)
		}
	}
}

// Load resolves the options from the parsed flag set, the environment and
// the config file named by the "config" option.
func Load(fs *pflag.FlagSet) (*Options, error) {
	v := viper.New()

	for _, o := range options {
		v.SetDefault(o.key, o.def)
		if err := v.BindEnv(o.key, o.env); err != nil {
			return nil, err
		}
		if f := fs.Lookup(o.key); f != nil {
			if err := v.BindPFlag(o.key, f); err != nil {
				return nil, err
			}
		}
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := opts.validate(); err != nil {
		return nil, err
	}

	return &opts, nil
}

func (o *Options) validate() error {
	if o.ResolveTimeout <= 0 {
		return errors.New("resolve_timeout must be positive")
	}

	if o.JournalFlushInterval <= 0 {
		return errors.New("journal_flush_interval must be positive")
	}

	if o.TrustedSubnet != "" {
		if _, _, err := net.ParseCIDR(o.TrustedSubnet); err != nil {
			return fmt.Errorf("trusted_subnet: %w", err)
		}
	}

	switch strings.ToLower(o.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log_format %q", o.LogFormat)
	}

	return nil
}
