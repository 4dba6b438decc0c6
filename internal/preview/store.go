package preview

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

const previewPrefix = "preview_"

// figureName matches six-component figures and not the single-channel
// plots written next to them.
var figureName = regexp.MustCompile(`^seismogram_\d+_\d+_\d+_h\d+-\d+-\d+_f[0-9.]+-[0-9.]+\.png$`)

// Store is the figure output directory.
type Store struct {
	dir string
}

// NewStore creates dir if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// Path returns the location of a figure file.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// PreviewPath returns where the preview of a figure is written.
func (s *Store) PreviewPath(name string) string {
	return filepath.Join(s.dir, previewPrefix+name)
}

// Exists reports whether a non-empty figure is already present.
func (s *Store) Exists(name string) bool {
	info, err := os.Stat(s.Path(name))
	return err == nil && !info.IsDir() && info.Size() > 0
}

// WritePreview reads a figure and writes its labelled preview.
func (s *Store) WritePreview(name, label string, width int) (string, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return "", fmt.Errorf("read figure: %w", err)
	}
	out, err := Generate(data, label, width)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	path := s.PreviewPath(name)
	if err := os.WriteFile(path, out, 0644); err != nil {
		return "", fmt.Errorf("write preview: %w", err)
	}
	return path, nil
}

// List returns the event figures in the directory, sorted by name.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && figureName.MatchString(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
