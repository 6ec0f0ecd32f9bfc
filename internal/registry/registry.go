package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"github.com/ttscompanion/ttsc/internal/slug"
)

var (
	// ErrLocked indicates another process holds the registry lock.
	ErrLocked = errors.New("registry is locked by another process")

	// ErrUnknownGame indicates the game has no registry record.
	ErrUnknownGame = errors.New("unknown game")

	// ErrUnknownRulebook indicates no entry matched the identifier.
	ErrUnknownRulebook = errors.New("unknown rulebook")
)

// maxFilenameSlugRunes bounds the readable part of generated filenames;
// the hash suffix keeps truncated names distinct.
const maxFilenameSlugRunes = 40

// Store owns the registry document. All mutators persist the document
// before returning, so the on-disk file always reflects the last
// successful operation. A flock sidecar keeps a second process from
// opening the same document.
type Store struct {
	mu     sync.Mutex
	path   string
	flk    *flock.Flock
	games  map[string]*Game
	files  *Files
	logger *slog.Logger
}

// NewStore opens (or initializes) the registry document at path and takes
// the cross-process lock. A malformed document is replaced by an empty
// registry with a warning: losing stale metadata beats refusing to start.
func NewStore(path string, files *Files, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating registry directory: %w", err)
	}

	flk := flock.New(path + ".lock")
	locked, err := flk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring registry lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, flk.Path())
	}

	s := &Store{
		path:   path,
		flk:    flk,
		games:  make(map[string]*Game),
		files:  files,
		logger: logger,
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run.
	case err != nil:
		_ = flk.Unlock()
		return nil, fmt.Errorf("reading registry: %w", err)
	default:
		if err := json.Unmarshal(data, &s.games); err != nil {
			logger.Warn("registry file is malformed, starting with an empty registry",
				"path", path, "error", err)
			s.games = make(map[string]*Game)
		}
	}

	return s, nil
}

// Close releases the cross-process lock.
func (s *Store) Close() error {
	if err := s.flk.Unlock(); err != nil {
		return fmt.Errorf("releasing registry lock: %w", err)
	}
	return nil
}

// HasGame reports whether the game has a registry record.
func (s *Store) HasGame(game string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.games[game]
	return ok
}

// CreateDefaultEntry ensures the game exists and has its synthesized
// fallback rulebook entry, creating the placeholder file if needed.
func (s *Store) CreateDefaultEntry(game string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.defaultEntryLocked(game); err != nil {
		return err
	}
	return s.persistLocked()
}

// MergeDiscoveredReferences adds entries for refs not already known for
// the game. Known references are left untouched, so rescans are
// idempotent. The document is persisted once for the whole batch.
func (s *Store) MergeDiscoveredReferences(game string, refs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mergeLocked(game, refs); err != nil {
		return err
	}
	return s.persistLocked()
}

// ApplyScanResults folds a full workshop scan into the registry under a
// single lock and a single persist. Games with discovered references get
// them merged; games with none get a default entry unless already known.
func (s *Store) ApplyScanResults(results []ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, res := range results {
		if len(res.Refs) > 0 {
			if err := s.mergeLocked(res.Game, res.Refs); err != nil {
				return err
			}
			continue
		}
		if _, known := s.games[res.Game]; known {
			continue
		}
		if err := s.defaultEntryLocked(res.Game); err != nil {
			return err
		}
	}
	return s.persistLocked()
}

// UpdateStatus sets the status of one entry and persists. Unknown game or
// identifier key is a logged no-op.
func (s *Store) UpdateStatus(game, key string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[game]
	if !ok {
		s.logger.Warn("status update for unknown game", "game", game)
		return nil
	}
	entry, ok := g.Rulebooks[key]
	if !ok {
		s.logger.Warn("status update for unknown rulebook", "game", game, "key", key)
		return nil
	}
	if entry.Status == status {
		return nil
	}
	entry.Status = status
	g.Rulebooks[key] = entry
	return s.persistLocked()
}

// ListRulebooks returns the game's entries ordered by display id. Unknown
// games list as empty.
func (s *Store) ListRulebooks(game string) []Rulebook {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[game]
	if !ok {
		return nil
	}

	entries := entriesByDisplayID(g)
	list := make([]Rulebook, 0, len(entries))
	for _, e := range entries {
		list = append(list, Rulebook{
			ID:             e.DisplayID,
			Name:           e.NormalizedFilename,
			Status:         e.Status,
			Path:           e.EditableTextPath,
			OriginalSource: e.OriginalSource,
		})
	}
	return list
}

// entriesByDisplayID returns the game's entries in ascending display-id
// order, numeric ids first.
func entriesByDisplayID(g *Game) []Entry {
	entries := make([]Entry, 0, len(g.Rulebooks))
	for _, e := range g.Rulebooks {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, errA := strconv.Atoi(entries[i].DisplayID)
		b, errB := strconv.Atoi(entries[j].DisplayID)
		if errA == nil && errB == nil {
			return a < b
		}
		return entries[i].DisplayID < entries[j].DisplayID
	})
	return entries
}

// ResolvePath finds an entry's text file path by display id, or failing
// that by case-insensitive substring of the filename.
func (s *Store) ResolvePath(game, identifier string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[game]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownGame, game)
	}

	// Several filenames can contain the identifier; walking entries in
	// display-id order makes the lowest id win on every call.
	entries := entriesByDisplayID(g)
	for _, e := range entries {
		if e.DisplayID == identifier {
			return e.EditableTextPath, nil
		}
	}

	needle := strings.ToLower(identifier)
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.NormalizedFilename), needle) {
			return e.EditableTextPath, nil
		}
	}
	return "", fmt.Errorf("%w: %q for game %q", ErrUnknownRulebook, identifier, game)
}

// IdentifierKeyForPath returns the identifier key of the entry whose text
// file is at path.
func (s *Store) IdentifierKeyForPath(game, path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[game]
	if !ok {
		return "", false
	}
	for key, e := range g.Rulebooks {
		if e.EditableTextPath == path {
			return key, true
		}
	}
	return "", false
}

// AutoLoadCandidate returns the game's single rulebook entry and its
// identifier key. Games with zero or multiple entries have no candidate:
// auto-loading must never guess between rulebooks.
func (s *Store) AutoLoadCandidate(game string) (key string, entry Entry, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, found := s.games[game]
	if !found || len(g.Rulebooks) != 1 {
		return "", Entry{}, false
	}
	for k, e := range g.Rulebooks {
		return k, e, true
	}
	return "", Entry{}, false
}

// Games returns the known game names, sorted.
func (s *Store) Games() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.games))
	for name := range s.games {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ensureGameLocked returns the game's record, creating it if needed.
func (s *Store) ensureGameLocked(game string) *Game {
	g, ok := s.games[game]
	if !ok {
		g = &Game{
			DisplayName: game,
			Rulebooks:   make(map[string]Entry),
		}
		s.games[game] = g
	}
	return g
}

func (s *Store) mergeLocked(game string, refs []string) error {
	g := s.ensureGameLocked(game)
	for _, ref := range refs {
		if _, exists := g.Rulebooks[ref]; exists {
			continue
		}
		filename := NormalizedFilename(ref)
		abs, err := s.files.CreatePlaceholder(game, filename)
		if err != nil {
			return err
		}
		g.Rulebooks[ref] = Entry{
			OriginalSource:     ref,
			NormalizedFilename: filename,
			EditableTextPath:   abs,
			Status:             StatusAwaitingContent,
			DisplayID:          strconv.Itoa(len(g.Rulebooks) + 1),
		}
		s.logger.Info("registered rulebook reference",
			"game", game, "source", ref, "file", filename)
	}
	return nil
}

func (s *Store) defaultEntryLocked(game string) error {
	g := s.ensureGameLocked(game)
	key := "default_for_" + slug.Slugify(game)
	if _, exists := g.Rulebooks[key]; exists {
		return nil
	}
	filename := "rulebook_" + slug.Slugify(game) + ".md"
	abs, err := s.files.CreatePlaceholder(game, filename)
	if err != nil {
		return err
	}
	g.Rulebooks[key] = Entry{
		NormalizedFilename: filename,
		EditableTextPath:   abs,
		Status:             StatusAwaitingContent,
		DisplayID:          strconv.Itoa(len(g.Rulebooks) + 1),
	}
	s.logger.Info("registered default rulebook entry", "game", game, "file", filename)
	return nil
}

// persistLocked writes the document atomically: temp file in the same
// directory, then rename.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.games, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".registry-*.json")
	if err != nil {
		return fmt.Errorf("creating registry temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing registry temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing registry file: %w", err)
	}
	return nil
}

// NormalizedFilename derives the deterministic filename for a source
// reference: a slug of the reference's base name truncated to 40 runes,
// plus an 8-hex digest of the full reference so near-identical sources
// never collide.
func NormalizedFilename(ref string) string {
	base := ref
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		base = u.Path
	}
	base = path.Base(base)
	base = strings.TrimSuffix(base, path.Ext(base))

	stem := slug.Slugify(base)
	if runes := []rune(stem); len(runes) > maxFilenameSlugRunes {
		stem = string(runes[:maxFilenameSlugRunes])
	}
	if stem == "" {
		stem = "source"
	}

	sum := sha256.Sum256([]byte(ref))
	return "rulebook_" + stem + "_" + hex.EncodeToString(sum[:4]) + ".md"
}
