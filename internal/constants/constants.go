// Package constants provides centralized domain-specific constants
// for the numass storage layer.
//
// This file consolidates the metadata keys and format discriminators
// shared by the codecs, the loader and the CLI.
package constants

// =============================================================================
// Point Metadata Keys
// =============================================================================

const (
	// KeyStartTime is the absolute start of a point acquisition.
	KeyStartTime = "start_time"

	// KeyAcquisitionTime is the acquisition length in seconds.
	KeyAcquisitionTime = "acquisition_time"

	// KeyExternalAcquisitionTime wins over KeyAcquisitionTime when both exist.
	KeyExternalAcquisitionTime = "external_meta.acquisition_time"

	// KeyTimeCoeff is the tick length in nanoseconds.
	KeyTimeCoeff = "time_coeff"

	// KeyVoltage is the set HV1 voltage.
	KeyVoltage = "external_meta.HV1_value"

	// KeyPointIndex drives point ordering inside a set.
	KeyPointIndex = "external_meta.point_index"

	// KeySplit marks points split into several acquisition blocks.
	KeySplit = "split"

	// KeyBlockSize is the number of samples in one waveform frame.
	KeyBlockSize = "b_size"

	// KeySampleFreq is the digitizer sample frequency in Hz.
	KeySampleFreq = "sample_freq"

	// KeyParamsSampleFreq is the nested form of KeySampleFreq.
	KeyParamsSampleFreq = "params.sample_freq"

	// KeyDataType declares the codec of a point envelope.
	KeyDataType = "data_type"

	// KeyProtocol is the older discriminator written by the acquisition software.
	KeyProtocol = "protocol"

	// KeyCompression names the payload compression of protobuf points.
	KeyCompression = "compression"

	// KeyDescription is the human readable description of a run.
	KeyDescription = "description"
)

// =============================================================================
// Point Data Types
// =============================================================================

const (
	// DataTypeClassic is the flat 7-byte record format.
	DataTypeClassic = "numass.point.classic"

	// DataTypeProto is the protobuf channel/block format.
	DataTypeProto = "numass.point.proto"

	// DataTypeLegacy is the 7-byte record format with a columnar sidecar.
	DataTypeLegacy = "numass.point.legacy"
)

// =============================================================================
// Payload Compression
// =============================================================================

const (
	CompressionNone = ""
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

// =============================================================================
// Tree Node Kinds
// =============================================================================

const (
	// NodeKindShelf is a node with named children.
	NodeKindShelf = "shelf"

	// NodeKindLoader is a terminal node holding one run.
	NodeKindLoader = "loader"
)
