// Package parquet implements the columnar sidecar of legacy points.
//
// Legacy acquisition software wrote event records without structured
// metadata. The time base, set and read voltage and the acquisition length
// of such a point live in a one-row Parquet file stored next to the point
// fragment. The package provides:
//   - SidecarRow, the Parquet schema
//   - SidecarWriter/WriteSidecar for converters and tests
//   - ReadSidecar/ReadSidecarBytes for the legacy codec
//   - Support for multiple compression algorithms (snappy, zstd, lz4, gzip)
package parquet
