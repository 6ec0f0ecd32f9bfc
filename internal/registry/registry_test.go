package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttscompanion/ttsc/internal/log"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	files := NewFiles(filepath.Join(dir, "cache"), log.NewNop())
	store, err := NewStore(filepath.Join(dir, "registry.json"), files, log.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMergeDiscoveredReferences(t *testing.T) {
	store := newTestStore(t)

	refs := []string{
		"https://host/files/chess_rules.pdf",
		"https://host/files/chess_variants.pdf",
	}
	require.NoError(t, store.MergeDiscoveredReferences("Chess Deluxe", refs))

	list := store.ListRulebooks("Chess Deluxe")
	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].ID)
	assert.Equal(t, "2", list[1].ID)
	for _, rb := range list {
		assert.Equal(t, StatusAwaitingContent, rb.Status)
		assert.FileExists(t, rb.Path)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	refs := []string{"https://host/a.pdf", "https://host/b.pdf"}

	require.NoError(t, store.MergeDiscoveredReferences("Catan", refs))
	first := store.ListRulebooks("Catan")

	require.NoError(t, store.MergeDiscoveredReferences("Catan", refs))
	second := store.ListRulebooks("Catan")

	assert.Equal(t, first, second)
}

func TestCreateDefaultEntry(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateDefaultEntry("Tiny Epic Galaxies"))
	require.NoError(t, store.CreateDefaultEntry("Tiny Epic Galaxies"))

	list := store.ListRulebooks("Tiny Epic Galaxies")
	require.Len(t, list, 1)
	assert.Equal(t, "rulebook_tiny_epic_galaxies.md", list[0].Name)
	assert.Empty(t, list[0].OriginalSource)
}

func TestApplyScanResults(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateDefaultEntry("Known Game"))

	results := []ScanResult{
		{Game: "Chess", Refs: []string{"https://host/chess.pdf"}},
		{Game: "Known Game"},
		{Game: "Fresh Game"},
	}
	require.NoError(t, store.ApplyScanResults(results))

	assert.Len(t, store.ListRulebooks("Chess"), 1)
	// An already known game without refs keeps its entries untouched.
	assert.Len(t, store.ListRulebooks("Known Game"), 1)
	// An unknown game without refs gets the synthesized default.
	assert.Len(t, store.ListRulebooks("Fresh Game"), 1)
}

func TestUpdateStatus(t *testing.T) {
	store := newTestStore(t)
	ref := "https://host/rules.pdf"
	require.NoError(t, store.MergeDiscoveredReferences("Chess", []string{ref}))

	require.NoError(t, store.UpdateStatus("Chess", ref, StatusProcessed))
	list := store.ListRulebooks("Chess")
	require.Len(t, list, 1)
	assert.Equal(t, StatusProcessed, list[0].Status)

	// Unknown game and unknown key are no-ops, not errors.
	assert.NoError(t, store.UpdateStatus("Nope", ref, StatusProcessed))
	assert.NoError(t, store.UpdateStatus("Chess", "missing", StatusProcessed))
}

func TestResolvePath(t *testing.T) {
	store := newTestStore(t)
	ref := "https://host/files/Advanced_Rules.pdf"
	require.NoError(t, store.MergeDiscoveredReferences("Chess", []string{ref}))

	byID, err := store.ResolvePath("Chess", "1")
	require.NoError(t, err)

	bySubstring, err := store.ResolvePath("Chess", "ADVANCED")
	require.NoError(t, err)
	assert.Equal(t, byID, bySubstring)

	_, err = store.ResolvePath("Chess", "no-such-book")
	assert.ErrorIs(t, err, ErrUnknownRulebook)

	_, err = store.ResolvePath("Unknown", "1")
	assert.ErrorIs(t, err, ErrUnknownGame)
}

func TestResolvePathAmbiguousSubstringIsStable(t *testing.T) {
	store := newTestStore(t)
	refs := []string{
		"https://host/rules_alpha.pdf",
		"https://host/rules_beta.pdf",
		"https://host/rules_gamma.pdf",
		"https://host/rules_delta.pdf",
	}
	require.NoError(t, store.MergeDiscoveredReferences("Chess", refs))

	// "rules" matches every filename; the entry with display id "1" must
	// win on every call, not a random map-order pick.
	want, err := store.ResolvePath("Chess", "1")
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		got, err := store.ResolvePath("Chess", "rules")
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestIdentifierKeyForPath(t *testing.T) {
	store := newTestStore(t)
	ref := "https://host/rules.pdf"
	require.NoError(t, store.MergeDiscoveredReferences("Chess", []string{ref}))

	path, err := store.ResolvePath("Chess", "1")
	require.NoError(t, err)

	key, ok := store.IdentifierKeyForPath("Chess", path)
	require.True(t, ok)
	assert.Equal(t, ref, key)

	_, ok = store.IdentifierKeyForPath("Chess", "/elsewhere.md")
	assert.False(t, ok)
}

func TestAutoLoadCandidate(t *testing.T) {
	store := newTestStore(t)

	_, _, ok := store.AutoLoadCandidate("Unknown")
	assert.False(t, ok)

	require.NoError(t, store.MergeDiscoveredReferences("Solo", []string{"https://host/solo.pdf"}))
	key, entry, ok := store.AutoLoadCandidate("Solo")
	require.True(t, ok)
	assert.Equal(t, "https://host/solo.pdf", key)
	assert.Equal(t, "1", entry.DisplayID)

	// Two entries: no candidate, never guess.
	require.NoError(t, store.MergeDiscoveredReferences("Solo", []string{"https://host/solo2.pdf"}))
	_, _, ok = store.AutoLoadCandidate("Solo")
	assert.False(t, ok)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	regPath := filepath.Join(dir, "registry.json")
	files := NewFiles(filepath.Join(dir, "cache"), log.NewNop())

	store, err := NewStore(regPath, files, log.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.MergeDiscoveredReferences("Chess", []string{"https://host/rules.pdf"}))
	before := store.ListRulebooks("Chess")
	require.NoError(t, store.Close())

	reopened, err := NewStore(regPath, files, log.NewNop())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	assert.Equal(t, before, reopened.ListRulebooks("Chess"))
	assert.Equal(t, []string{"Chess"}, reopened.Games())
}

func TestMalformedRegistryStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	regPath := filepath.Join(dir, "registry.json")
	require.NoError(t, os.WriteFile(regPath, []byte("{not json"), 0o640))

	store, err := NewStore(regPath, NewFiles(filepath.Join(dir, "cache"), log.NewNop()), log.NewNop())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	assert.Empty(t, store.Games())
}

func TestRegistryDocumentShape(t *testing.T) {
	dir := t.TempDir()
	regPath := filepath.Join(dir, "registry.json")
	files := NewFiles(filepath.Join(dir, "cache"), log.NewNop())

	store, err := NewStore(regPath, files, log.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.MergeDiscoveredReferences("Chess Deluxe", []string{"https://host/rules.pdf"}))
	require.NoError(t, store.Close())

	data, err := os.ReadFile(regPath)
	require.NoError(t, err)

	var doc map[string]struct {
		DisplayName string                    `json:"display_name"`
		Rulebooks   map[string]map[string]any `json:"rulebooks"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	game, ok := doc["Chess Deluxe"]
	require.True(t, ok)
	assert.Equal(t, "Chess Deluxe", game.DisplayName)
	entry := game.Rulebooks["https://host/rules.pdf"]
	require.NotNil(t, entry)
	for _, field := range []string{"original_source", "normalized_filename", "editable_text_path", "status", "display_id"} {
		assert.Contains(t, entry, field)
	}
}

func TestNormalizedFilename(t *testing.T) {
	t.Run("derives stem from url path", func(t *testing.T) {
		name := NormalizedFilename("https://host/files/Chess%20Rules.pdf?v=2#page=1")
		assert.True(t, strings.HasPrefix(name, "rulebook_"), name)
		assert.True(t, strings.HasSuffix(name, ".md"), name)
		assert.NotContains(t, name, "?")
		assert.NotContains(t, name, "#")
	})

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t,
			NormalizedFilename("https://host/rules.pdf"),
			NormalizedFilename("https://host/rules.pdf"))
	})

	t.Run("same basename different refs stay distinct", func(t *testing.T) {
		a := NormalizedFilename("https://a.example/rules.pdf")
		b := NormalizedFilename("https://b.example/rules.pdf")
		assert.NotEqual(t, a, b)
	})

	t.Run("long stems are truncated", func(t *testing.T) {
		name := NormalizedFilename("https://host/" + strings.Repeat("x", 200) + ".pdf")
		stem := strings.TrimSuffix(strings.TrimPrefix(name, "rulebook_"), ".md")
		parts := strings.Split(stem, "_")
		require.GreaterOrEqual(t, len(parts), 2)
		assert.LessOrEqual(t, len([]rune(parts[0])), 40)
		assert.Len(t, parts[len(parts)-1], 8)
	})
}

func TestPlaceholderNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	files := NewFiles(dir, log.NewNop())

	path, err := files.CreatePlaceholder("Chess", "rulebook_rules.md")
	require.NoError(t, err)

	custom := []byte("# Pawns move forward.\n")
	require.NoError(t, os.WriteFile(path, custom, 0o640))

	again, err := files.CreatePlaceholder("Chess", "rulebook_rules.md")
	require.NoError(t, err)
	assert.Equal(t, path, again)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, custom, got)
}

func TestIsUnfilled(t *testing.T) {
	dir := t.TempDir()
	files := NewFiles(dir, log.NewNop())

	path, err := files.CreatePlaceholder("Chess", "rulebook_rules.md")
	require.NoError(t, err)

	assert.True(t, files.IsUnfilled("Chess", path), "pristine placeholder")

	require.NoError(t, os.WriteFile(path, []byte("# Pawns move forward.\n"), 0o640))
	assert.False(t, files.IsUnfilled("Chess", path), "edited rulebook")

	assert.True(t, files.IsUnfilled("Chess", filepath.Join(dir, "missing.md")),
		"unreadable files are treated as unfilled")
}

func TestPlaceholderTemplateContent(t *testing.T) {
	dir := t.TempDir()
	files := NewFiles(dir, log.NewNop())

	path, err := files.CreatePlaceholder("Chess Deluxe", "rulebook_rules_1a2b3c4d.md")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Chess Deluxe")
	assert.Contains(t, text, "rulebook_rules_1a2b3c4d")
}
