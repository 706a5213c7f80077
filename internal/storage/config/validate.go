package config

import (
	"fmt"

	"github.com/xtxerr/numass/internal/errors"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	v := errors.NewValidationErrors()

	if c.Root == "" {
		v.AddMissing("root")
	}

	switch c.Backend {
	case BackendLocal, BackendZip:
	case BackendSFTP:
		c.SFTP.validate(v)
	default:
		v.AddField("backend", fmt.Sprintf("must be one of: %s, %s, %s, got %q", BackendLocal, BackendSFTP, BackendZip, c.Backend))
	}

	c.Layout.validate(v)
	c.Decode.validate(v)
	c.Push.validate(v)

	if c.Scan.Parallelism <= 0 {
		v.AddField("scan.parallelism", "must be positive")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		v.AddField("logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level))
	}

	return v.Err()
}

func (c *SFTPConfig) validate(v *errors.ValidationErrors) {
	if c.Addr == "" {
		v.AddMissing("sftp.addr")
	}
	if c.User == "" {
		v.AddMissing("sftp.user")
	}
	if c.Password == "" && c.KeyFile == "" {
		v.AddField("sftp", "password or key_file required")
	}
	if c.KnownHostsFile == "" && !c.InsecureIgnoreHostKey {
		v.AddField("sftp", "known_hosts_file required unless insecure_ignore_host_key is set")
	}
	if c.Timeout < 0 {
		v.AddField("sftp.timeout", "must not be negative")
	}
}

func (c *LayoutConfig) validate(v *errors.ValidationErrors) {
	names := map[string]string{
		"layout.meta_fragment":     c.MetaFragment,
		"layout.voltage_fragment":  c.VoltageFragment,
		"layout.point_prefix":      c.PointPrefix,
		"layout.archive_extension": c.ArchiveExtension,
		"layout.sidecar_suffix":    c.SidecarSuffix,
	}
	for field, name := range names {
		if name == "" {
			v.AddMissing(field)
		}
	}

	// A meta fragment carrying the point prefix would be decoded as a point.
	if c.PointPrefix != "" && len(c.MetaFragment) >= len(c.PointPrefix) &&
		c.MetaFragment[:len(c.PointPrefix)] == c.PointPrefix {
		v.AddField("layout.point_prefix", fmt.Sprintf("%q is a prefix of the meta fragment", c.PointPrefix))
	}
}

func (c *DecodeConfig) validate(v *errors.ValidationErrors) {
	if c.TimeCoeff <= 0 {
		v.AddField("decode.time_coeff", "must be positive")
	}
	if c.ReadBufferSize < 16 {
		v.AddField("decode.read_buffer_size", "must be at least 16")
	}
	if c.MaxProtoSize <= 0 {
		v.AddField("decode.max_proto_size", "must be positive")
	}
}

func (c *PushConfig) validate(v *errors.ValidationErrors) {
	switch c.Compression {
	case "", "store", "deflate":
	default:
		v.AddField("push.compression", fmt.Sprintf("must be one of: store, deflate, got %q", c.Compression))
	}
}
