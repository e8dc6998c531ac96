package hierarchy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dshills/javacontext/pkg/types"
)

// ErrInvalidArtifact is returned when a hierarchy file cannot be decoded
var ErrInvalidArtifact = errors.New("invalid hierarchy artifact")

type recordJSON struct {
	ParentName         *string  `json:"parent_name"`
	DeclaredOperations []string `json:"declared_operations"`
	SimpleName         string   `json:"simple_name"`
}

// MarshalJSON encodes the map as an object keyed by qualified name, with
// keys in scan order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, rec := range m.Records() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(rec.QualifiedName)
		if err != nil {
			return nil, err
		}
		ops := rec.DeclaredOperations
		if ops == nil {
			ops = []string{}
		}
		val, err := json.Marshal(recordJSON{
			ParentName:         rec.ParentName,
			DeclaredOperations: ops,
			SimpleName:         rec.SimpleName,
		})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an artifact, keeping key order as scan order
func (m *Map) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: expected object", ErrInvalidArtifact)
	}

	var records []types.TypeRecord
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: expected key", ErrInvalidArtifact)
		}
		var rj recordJSON
		if err := dec.Decode(&rj); err != nil {
			return fmt.Errorf("%w: record %q: %v", ErrInvalidArtifact, key, err)
		}
		records = append(records, types.TypeRecord{
			QualifiedName:      key,
			SimpleName:         rj.SimpleName,
			ParentName:         rj.ParentName,
			DeclaredOperations: rj.DeclaredOperations,
		})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}

	*m = *NewMap(records)
	return nil
}

// Save writes the map to path atomically
func Save(path string, m *Map) error {
	raw, err := m.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode hierarchy: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return fmt.Errorf("encode hierarchy: %w", err)
	}
	out.WriteByte('\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create hierarchy dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".hierarchy-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(out.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write hierarchy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close hierarchy: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename hierarchy: %w", err)
	}
	return nil
}

// Load reads a map written by Save
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hierarchy: %w", err)
	}
	m := &Map{}
	if err := m.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadOrEmpty loads the map at path. Any failure is logged and an empty map
// is returned so parsing proceeds without inheritance context.
func LoadOrEmpty(path string, logger *slog.Logger) *Map {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := Load(path)
	if err != nil {
		logger.Warn("hierarchy.load.failed", "path", path, "err", err)
		return Empty()
	}
	logger.Debug("hierarchy.load.ok", "path", path, "types", m.Len())
	return m
}
