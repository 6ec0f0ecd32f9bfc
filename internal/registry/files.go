package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ttscompanion/ttsc/internal/slug"
)

// placeholderTemplate is written into freshly created rulebook files. The
// operator replaces it with the actual rulebook text and then refreshes
// the index.
const placeholderTemplate = `# Rulebook text for %s

Paste the rules of "%s" into this file, replacing everything here.

Source file: %s

When you are done, rebuild the retrieval index by POSTing to
/rulebooks/refresh (or restart and reload the game in the mod).

Until then, questions about this game are answered with guidance to fill
in the rulebook first.
`

// Files manages the per-game editable rulebook text files under a single
// cache root.
type Files struct {
	root   string
	logger *slog.Logger
}

// NewFiles creates a file store rooted at root.
func NewFiles(root string, logger *slog.Logger) *Files {
	return &Files{root: root, logger: logger}
}

// GameDir returns the directory holding a game's rulebook files.
func (f *Files) GameDir(game string) string {
	return filepath.Join(f.root, slug.Slugify(game))
}

// CreatePlaceholder ensures the game's directory exists and that filename
// inside it holds at least the placeholder template. An existing file is
// never touched, whatever its content: it may already hold operator-pasted
// rulebook text. Returns the absolute path of the file either way.
func (f *Files) CreatePlaceholder(game, filename string) (string, error) {
	dir := f.GameDir(game)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating rulebook directory for %q: %w", game, err)
	}

	path := filepath.Join(dir, filename)
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving rulebook path: %w", err)
	}

	if _, err := os.Stat(abs); err == nil {
		return abs, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("checking rulebook file: %w", err)
	}

	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	content := fmt.Sprintf(placeholderTemplate, game, game, stem)
	if err := os.WriteFile(abs, []byte(content), 0o640); err != nil {
		return "", fmt.Errorf("writing placeholder for %q: %w", game, err)
	}

	f.logger.Info("created rulebook placeholder", "game", game, "path", abs)
	return abs, nil
}

// IsUnfilled reports whether the file at path still holds the pristine
// placeholder template, meaning nobody has pasted rulebook text yet.
// Unreadable files count as unfilled; auto-indexing must stay on the
// conservative side.
func (f *Files) IsUnfilled(game, path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	expected := fmt.Sprintf(placeholderTemplate, game, game, stem)
	return string(data) == expected
}
