package meta

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/logging"
)

var log = logging.Component("meta")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Type identifies the serialization of a metadata block.
type Type uint16

const (
	TypeUnknown Type = 0
	TypeJSON    Type = 1
	TypeYAML    Type = 2
)

// String returns the name of the meta type.
func (t Type) String() string {
	switch t {
	case TypeJSON:
		return "json"
	case TypeYAML:
		return "yaml"
	default:
		return fmt.Sprintf("meta-type(%d)", uint16(t))
	}
}

// Decode parses data according to t. An empty input yields an empty Meta.
func Decode(t Type, data []byte) (Meta, error) {
	switch t {
	case TypeJSON:
		return DecodeJSON(data)
	case TypeYAML:
		return DecodeYAML(data)
	case TypeUnknown:
		return Sniff(data)
	default:
		return Meta{}, fmt.Errorf("meta type %d: %w", t, errors.ErrUnsupportedFormat)
	}
}

// Sniff guesses the serialization from the first non-blank byte.
// JSON objects start with '{'; everything else is treated as YAML.
func Sniff(data []byte) (Meta, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return DecodeJSON(trimmed)
	}
	return DecodeYAML(data)
}

// DecodeJSON parses a JSON object.
func DecodeJSON(data []byte) (Meta, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Meta{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, fmt.Errorf("decode json meta: %w: %w", errors.ErrConfiguration, err)
	}
	return New(m), nil
}

// DecodeYAML parses a YAML mapping.
func DecodeYAML(data []byte) (Meta, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Meta{}, nil
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Meta{}, fmt.Errorf("decode yaml meta: %w: %w", errors.ErrConfiguration, err)
	}
	return New(m), nil
}

// EncodeJSON serializes the tree as a JSON object.
func (m Meta) EncodeJSON() ([]byte, error) {
	return json.Marshal(m.Map())
}

// EncodeYAML serializes the tree as a YAML mapping.
func (m Meta) EncodeYAML() ([]byte, error) {
	return yaml.Marshal(m.Map())
}

// Encode serializes the tree according to t.
func (m Meta) Encode(t Type) ([]byte, error) {
	switch t {
	case TypeJSON:
		return m.EncodeJSON()
	case TypeYAML:
		return m.EncodeYAML()
	default:
		return nil, fmt.Errorf("meta type %d: %w", t, errors.ErrUnsupportedFormat)
	}
}

func logBadValue(path string, v any) {
	log.Warn("ignoring unparsable meta value", "key", path, "value", v)
}
