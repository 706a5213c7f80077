package codec

import (
	"bytes"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/xtxerr/numass/internal/constants"
	"github.com/xtxerr/numass/internal/envelope"
	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/meta"
)

// EncodeClassic returns a classic point envelope. data_type is set to
// FormatClassic unless m already declares it.
func EncodeClassic(m meta.Meta, records []Record) ([]byte, error) {
	if !m.Has(constants.KeyDataType) {
		m = m.With(constants.KeyDataType, string(FormatClassic))
	}
	return envelope.Encode(m, EncodeRecords(records))
}

// EncodeProto returns a protobuf point envelope, compressing the payload
// as named by compression ("", "gzip" or "zstd").
func EncodeProto(m meta.Meta, p *ProtoPoint, compression string) ([]byte, error) {
	payload := p.Marshal()

	switch compression {
	case constants.CompressionNone:
	case constants.CompressionGzip:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		payload = buf.Bytes()
	case constants.CompressionZstd:
		zw, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		payload = zw.EncodeAll(payload, nil)
		zw.Close()
	default:
		return nil, errors.NewBadValue(constants.KeyCompression, compression, "unsupported compression")
	}

	m = m.With(constants.KeyDataType, string(FormatProto))
	if compression != constants.CompressionNone {
		m = m.With(constants.KeyCompression, compression)
	}
	return envelope.Encode(m, payload)
}
