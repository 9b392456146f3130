package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "embed"

	"github.com/KevinKickass/BladeLoaderCore/internal/motion"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/positions-v1.json
var positionsSchemaJSON string

// FileStore keeps the taught positions in a single JSON file. Every
// load is validated against the embedded schema, so a hand-edited file
// with a malformed hook is rejected instead of silently teaching the
// arm a bad position.
type FileStore struct {
	mu     sync.Mutex
	path   string
	schema *jsonschema.Schema
}

func NewFileStore(path string) (*FileStore, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("positions-v1.json",
		strings.NewReader(positionsSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile("positions-v1.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &FileStore{path: path, schema: schema}, nil
}

// Load reads and validates the file. A missing file is not an error:
// it returns an empty set, the state of a machine never taught.
func (s *FileStore) Load(ctx context.Context) (StoredPositions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return StoredPositions{Hooks: []motion.Position{}}, nil
	}
	if err != nil {
		return StoredPositions{}, fmt.Errorf("failed to read positions file: %w", err)
	}

	if err := s.validate(data); err != nil {
		return StoredPositions{}, err
	}

	var p StoredPositions
	if err := json.Unmarshal(data, &p); err != nil {
		return StoredPositions{}, fmt.Errorf("failed to parse positions file: %w", err)
	}
	return p, nil
}

// Save writes atomically via a temp file in the same directory.
func (s *FileStore) Save(ctx context.Context, p StoredPositions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Hooks == nil {
		p.Hooks = []motion.Position{}
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal positions: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".positions-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write positions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace positions file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() {}

func (s *FileStore) validate(data []byte) error {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := s.schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
