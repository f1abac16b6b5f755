package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/questgraph/internal/quest"
)

// EncodeSnapshot serializes a snapshot in the stored JSON form.
func EncodeSnapshot(s *quest.Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses and validates a stored snapshot. Any error means the
// caller should treat the world as having no saved state.
func DecodeSnapshot(data []byte) (*quest.Snapshot, error) {
	var s quest.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// EncodeYAML renders a snapshot as YAML for export.
func EncodeYAML(s *quest.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeYAML parses a YAML export back into a snapshot.
func DecodeYAML(data []byte) (*quest.Snapshot, error) {
	var s quest.Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &s, nil
}
