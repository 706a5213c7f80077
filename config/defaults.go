// Package config provides configuration defaults and utilities
// for the numass storage tooling.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or command line flags.
package config

import "time"

// =============================================================================
// Layout Defaults
// =============================================================================

const (
	// DefaultMetaFragment is the fragment name that turns a directory into a Loader.
	// Override via config: layout.meta_fragment
	DefaultMetaFragment = "meta"

	// DefaultVoltageFragment is the name of the HV time-series fragment.
	// Override via config: layout.voltage_fragment
	DefaultVoltageFragment = "voltage"

	// DefaultPointPrefix is the prefix shared by all point fragments,
	// e.g. "p12(30s)(HV1=14000)".
	// Override via config: layout.point_prefix
	DefaultPointPrefix = "p"

	// DefaultArchiveExtension is the suffix of archive-backed Loaders.
	// Pushed runs are written as "<name>.<ext>".
	// Override via config: layout.archive_extension
	DefaultArchiveExtension = "nm.zip"

	// DefaultSidecarSuffix marks the columnar sidecar of a legacy point.
	// The sidecar of "p3" is "p3.parquet".
	// Override via config: layout.sidecar_suffix
	DefaultSidecarSuffix = ".parquet"
)

// =============================================================================
// Decode Defaults
// =============================================================================

const (
	// DefaultTimeCoeff is the tick length in nanoseconds used when a point
	// does not declare time_coeff.
	// Override via config: decode.time_coeff
	DefaultTimeCoeff = 50.0

	// DefaultReadBufferSize is the buffered reader size for event streams.
	// Override via config: decode.read_buffer_size
	DefaultReadBufferSize = 64 * 1024

	// DefaultPointIndex is the index assigned to points without
	// external_meta.point_index. Such points sort first.
	DefaultPointIndex = -1

	// DefaultMaxProtoPointSize limits a single protobuf point payload to
	// prevent OOM on corrupt length fields.
	// Override via config: decode.max_proto_size
	DefaultMaxProtoPointSize = 512 * 1024 * 1024
)

// =============================================================================
// Scan Defaults
// =============================================================================

const (
	// DefaultScanParallelism is the number of children classified concurrently
	// during a refresh.
	// Override via config: scan.parallelism
	DefaultScanParallelism = 8
)

// =============================================================================
// Push Defaults
// =============================================================================

const (
	// DefaultPushCompression is the zip method for pushed archives: store, deflate.
	// Override via config: push.compression
	DefaultPushCompression = "deflate"

	// DefaultJournalPath is the DuckDB file recording pushed archives.
	// An empty path keeps the journal in memory.
	// Override via config: push.journal_path
	DefaultJournalPath = ""
)

// =============================================================================
// SFTP Defaults
// =============================================================================

const (
	// DefaultSFTPPort is appended to sftp.addr when no port is given.
	DefaultSFTPPort = "22"

	// DefaultSFTPTimeout bounds the SSH handshake.
	// Override via config: sftp.timeout
	DefaultSFTPTimeout = 15 * time.Second
)
