package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xtxerr/numass/internal/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Backend != BackendLocal {
		t.Errorf("Backend = %q, want local", cfg.Backend)
	}
	if cfg.Layout.MetaFragment != "meta" {
		t.Errorf("MetaFragment = %q, want meta", cfg.Layout.MetaFragment)
	}
	if cfg.Decode.TimeCoeff != 50 {
		t.Errorf("TimeCoeff = %v, want 50", cfg.Decode.TimeCoeff)
	}
	if cfg.Push.Journal.Enabled {
		t.Error("journal should be disabled by default")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty root", func(c *Config) { c.Root = "" }, "root"},
		{"unknown backend", func(c *Config) { c.Backend = "s3" }, "backend"},
		{"sftp without addr", func(c *Config) {
			c.Backend = BackendSFTP
			c.SFTP.User = "numass"
			c.SFTP.Password = "secret"
			c.SFTP.InsecureIgnoreHostKey = true
		}, "sftp.addr"},
		{"sftp without credentials", func(c *Config) {
			c.Backend = BackendSFTP
			c.SFTP.Addr = "storage.local"
			c.SFTP.User = "numass"
			c.SFTP.KnownHostsFile = "/etc/ssh/known_hosts"
		}, "password or key_file"},
		{"sftp without host key check", func(c *Config) {
			c.Backend = BackendSFTP
			c.SFTP.Addr = "storage.local"
			c.SFTP.User = "numass"
			c.SFTP.KeyFile = "id_ed25519"
		}, "known_hosts_file"},
		{"empty meta fragment", func(c *Config) { c.Layout.MetaFragment = "" }, "layout.meta_fragment"},
		{"prefix shadows meta", func(c *Config) { c.Layout.PointPrefix = "m" }, "layout.point_prefix"},
		{"zero time coeff", func(c *Config) { c.Decode.TimeCoeff = 0 }, "decode.time_coeff"},
		{"tiny buffer", func(c *Config) { c.Decode.ReadBufferSize = 7 }, "decode.read_buffer_size"},
		{"bad compression", func(c *Config) { c.Push.Compression = "bzip2" }, "push.compression"},
		{"no parallelism", func(c *Config) { c.Scan.Parallelism = 0 }, "scan.parallelism"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %q", err, tt.field)
			}
			if !errors.IsValidation(err) {
				t.Errorf("expected validation error category, got %v", err)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Root = ""
	cfg.Scan.Parallelism = -1
	cfg.Decode.TimeCoeff = -5

	err := cfg.Validate()
	var v *errors.ValidationErrors
	if !errors.As(err, &v) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(v.Errors) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(v.Errors), err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("NUMASS_SFTP_PASSWORD", "s3cret")

	path := filepath.Join(t.TempDir(), "numass.yaml")
	data := `
root: /data/numass
backend: sftp
sftp:
  addr: storage.local
  user: numass
  password: ${NUMASS_SFTP_PASSWORD}
  insecure_ignore_host_key: true
  timeout: 5s
decode:
  time_coeff: 25
push:
  compression: store
  journal:
    enabled: true
    path: /var/lib/numass/journal.duckdb
logging:
  level: debug
  json: true
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SFTP.Password != "s3cret" {
		t.Errorf("Password = %q, want expanded env value", cfg.SFTP.Password)
	}
	if cfg.SFTP.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.SFTP.Timeout)
	}
	if cfg.SFTPAddr() != "storage.local:22" {
		t.Errorf("SFTPAddr = %q", cfg.SFTPAddr())
	}
	if cfg.Decode.TimeCoeff != 25 {
		t.Errorf("TimeCoeff = %v, want 25", cfg.Decode.TimeCoeff)
	}
	// Unset keys keep their defaults.
	if cfg.Decode.ReadBufferSize != DefaultConfig().Decode.ReadBufferSize {
		t.Errorf("ReadBufferSize = %d, want default", cfg.Decode.ReadBufferSize)
	}
	if cfg.Layout.PointPrefix != "p" {
		t.Errorf("PointPrefix = %q, want p", cfg.Layout.PointPrefix)
	}
	if !cfg.Push.Journal.Enabled || cfg.Push.Journal.Path == "" {
		t.Errorf("journal = %+v", cfg.Push.Journal)
	}
	if !cfg.Logging.JSON || cfg.Logging.Level != "debug" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	if _, err := Parse([]byte("root: [unterminated")); err == nil {
		t.Error("expected parse error")
	}

	if _, err := Parse([]byte("backend: tape\n")); err == nil {
		t.Error("expected validation error")
	}
}

func TestSFTPAddr(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"", ""},
		{"host", "host:22"},
		{"host:2222", "host:2222"},
		{"10.0.0.1", "10.0.0.1:22"},
		{"::1", "[::1]:22"},
		{"[::1]:2022", "[::1]:2022"},
	}
	for _, tt := range tests {
		c := DefaultConfig()
		c.SFTP.Addr = tt.addr
		if got := c.SFTPAddr(); got != tt.want {
			t.Errorf("SFTPAddr(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
