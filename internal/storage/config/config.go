// Package config loads the YAML configuration of a numass storage.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	defaults "github.com/xtxerr/numass/config"
)

// Backend kinds.
const (
	BackendLocal = "local"
	BackendSFTP  = "sftp"
	BackendZip   = "zip"
)

// Config represents the complete storage configuration.
type Config struct {
	// Root is the storage root: a directory for local, a remote directory
	// for sftp, an archive file for zip.
	Root string `yaml:"root"`

	// Backend selects how Root is accessed: local, sftp, zip.
	Backend string `yaml:"backend"`

	// SFTP configures the remote connection of the sftp backend.
	SFTP SFTPConfig `yaml:"sftp"`

	// Layout overrides the reserved fragment names.
	Layout LayoutConfig `yaml:"layout"`

	// Decode configures the event codecs.
	Decode DecodeConfig `yaml:"decode"`

	// Push configures archive creation and the push journal.
	Push PushConfig `yaml:"push"`

	// Scan configures tree refreshes.
	Scan ScanConfig `yaml:"scan"`

	// Logging configures the global logger.
	Logging LoggingConfig `yaml:"logging"`
}

// SFTPConfig configures the remote connection.
type SFTPConfig struct {
	// Addr is host or host:port.
	Addr string `yaml:"addr"`

	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// KeyFile is a private key in OpenSSH format.
	KeyFile string `yaml:"key_file"`

	// KnownHostsFile verifies the server key.
	KnownHostsFile string `yaml:"known_hosts_file"`

	// InsecureIgnoreHostKey disables host key verification.
	InsecureIgnoreHostKey bool `yaml:"insecure_ignore_host_key"`

	// Timeout bounds the SSH handshake.
	Timeout time.Duration `yaml:"timeout"`
}

// LayoutConfig holds the reserved fragment names.
type LayoutConfig struct {
	MetaFragment     string `yaml:"meta_fragment"`
	VoltageFragment  string `yaml:"voltage_fragment"`
	PointPrefix      string `yaml:"point_prefix"`
	ArchiveExtension string `yaml:"archive_extension"`
	SidecarSuffix    string `yaml:"sidecar_suffix"`
}

// DecodeConfig configures the event codecs.
type DecodeConfig struct {
	// TimeCoeff is the tick length in ns for points without time_coeff.
	TimeCoeff float64 `yaml:"time_coeff"`

	// ReadBufferSize is the buffered reader size of record streams.
	ReadBufferSize int `yaml:"read_buffer_size"`

	// MaxProtoSize caps a decompressed protobuf point.
	MaxProtoSize int64 `yaml:"max_proto_size"`
}

// PushConfig configures archive creation.
type PushConfig struct {
	// Compression is the zip method of archives built from directories:
	// store, deflate.
	Compression string `yaml:"compression"`

	// Journal records every push.
	Journal JournalConfig `yaml:"journal"`
}

// JournalConfig configures the push journal.
type JournalConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the DuckDB file. Empty keeps the journal in memory.
	Path string `yaml:"path"`
}

// ScanConfig configures tree refreshes.
type ScanConfig struct {
	// Parallelism bounds the children classified concurrently per shelf.
	Parallelism int `yaml:"parallelism"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// JSON switches to JSON output.
	JSON bool `yaml:"json"`
}

// Load loads configuration from a YAML file. Environment variables in the
// file are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration on top of the defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Root:    ".",
		Backend: BackendLocal,
		SFTP: SFTPConfig{
			Timeout: defaults.DefaultSFTPTimeout,
		},
		Layout: LayoutConfig{
			MetaFragment:     defaults.DefaultMetaFragment,
			VoltageFragment:  defaults.DefaultVoltageFragment,
			PointPrefix:      defaults.DefaultPointPrefix,
			ArchiveExtension: defaults.DefaultArchiveExtension,
			SidecarSuffix:    defaults.DefaultSidecarSuffix,
		},
		Decode: DecodeConfig{
			TimeCoeff:      defaults.DefaultTimeCoeff,
			ReadBufferSize: defaults.DefaultReadBufferSize,
			MaxProtoSize:   defaults.DefaultMaxProtoPointSize,
		},
		Push: PushConfig{
			Compression: defaults.DefaultPushCompression,
			Journal: JournalConfig{
				Path: defaults.DefaultJournalPath,
			},
		},
		Scan: ScanConfig{
			Parallelism: defaults.DefaultScanParallelism,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// SFTPAddr returns the SFTP address with the default port applied.
func (c *Config) SFTPAddr() string {
	if c.SFTP.Addr == "" {
		return ""
	}
	if _, _, err := net.SplitHostPort(c.SFTP.Addr); err == nil {
		return c.SFTP.Addr
	}
	return net.JoinHostPort(c.SFTP.Addr, defaults.DefaultSFTPPort)
}
