package record

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DecodeJSON reads a JSON array of objects.
func DecodeJSON(r io.Reader) ([]Record, error) {
	var raw []map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode JSON records: %w", err)
	}
	return fromMaps(raw), nil
}

// DecodeYAML reads a YAML sequence of mappings.
func DecodeYAML(r io.Reader) ([]Record, error) {
	var raw []map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("decode YAML records: %w", err)
	}
	return fromMaps(raw), nil
}

// Load reads records from a .json, .yaml or .yml file.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return DecodeJSON(f)
	case ".yaml", ".yml":
		return DecodeYAML(f)
	default:
		return nil, fmt.Errorf("unsupported records file extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
}

// FromMaps converts plain maps into records without copying their contents.
func FromMaps(maps []map[string]any) []Record {
	return fromMaps(maps)
}

func fromMaps(raw []map[string]any) []Record {
	records := make([]Record, 0, len(raw))
	for _, m := range raw {
		if m == nil {
			m = map[string]any{}
		}
		records = append(records, Record(m))
	}
	return records
}
