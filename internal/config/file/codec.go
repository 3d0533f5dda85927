package file

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// codec encodes the on-disk envelope.
type codec interface {
	marshal(v any) ([]byte, error)
	unmarshal(data []byte, v any) error
	name() string
}

func codecFor(path string) codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlCodec{}
	}
	return jsonCodec{}
}

type jsonCodec struct{}

func (jsonCodec) marshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (jsonCodec) unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) name() string                       { return "json" }

type yamlCodec struct{}

func (yamlCodec) marshal(v any) ([]byte, error)      { return yaml.Marshal(v) }
func (yamlCodec) unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }
func (yamlCodec) name() string                       { return "yaml" }
