package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/cvflow/pkg/domain"
)

// Store implements ports.GraphStore on the local filesystem.
// Documents are written as JSON; JSON, YAML and HCL files in the
// directory are all readable.
type Store struct {
	BasePath string
	Format   Format
}

// Option configures a Store.
type Option func(*Store)

// WithFormat selects the encoding used by Save. HCL cannot be written.
func WithFormat(f Format) Option {
	return func(s *Store) {
		if f == FormatJSON || f == FormatYAML {
			s.Format = f
		}
	}
}

// New creates a Store rooted at basePath.
// If basePath is empty, it defaults to ".cvflow/pipelines".
func New(basePath string, opts ...Option) *Store {
	if basePath == "" {
		basePath = filepath.Join(".cvflow", "pipelines")
	}
	s := &Store{BasePath: basePath, Format: FormatJSON}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) ext() string {
	if s.Format == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// Save persists the document atomically: it writes a temporary file in the
// same directory, syncs it and renames it over the destination.
func (s *Store) Save(ctx context.Context, name string, doc *domain.GraphDocument) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure pipeline directory: %w", err)
	}

	data, err := Encode(doc, s.Format)
	if err != nil {
		return fmt.Errorf("failed to encode pipeline: %w", err)
	}

	destPath := filepath.Join(s.BasePath, name+s.ext())

	tmpFile, err := os.CreateTemp(s.BasePath, ".tmp-"+name+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Windows rename fails when the destination exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing pipeline file for overwrite: %w", err)
		}
	}
	// Drop stale copies in the other formats so Load stays unambiguous.
	for _, ext := range extensions {
		if ext != s.ext() {
			_ = os.Remove(filepath.Join(s.BasePath, name+ext))
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads the first of name.json, name.yaml, name.yml and name.hcl found.
func (s *Store) Load(ctx context.Context, name string) (*domain.GraphDocument, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	for _, ext := range extensions {
		path := filepath.Join(s.BasePath, name+ext)
		doc, err := LoadDocument(path)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return nil, domain.ErrPipelineNotFound
}

// Delete removes every file stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	for _, ext := range extensions {
		err := os.Remove(filepath.Join(s.BasePath, name+ext))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete pipeline file: %w", err)
		}
	}
	return nil
}

// List returns the names of all readable documents.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}

	seen := make(map[string]bool)
	names := []string{}
	for _, entry := range entries {
		fn := entry.Name()
		if entry.IsDir() || strings.HasPrefix(fn, ".") {
			continue
		}
		if _, err := FormatOf(fn); err != nil {
			continue
		}
		name := strings.TrimSuffix(fn, filepath.Ext(fn))
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func checkName(name string) error {
	if name == "" {
		return errors.New("pipeline name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid pipeline name %q", name)
	}
	return nil
}
