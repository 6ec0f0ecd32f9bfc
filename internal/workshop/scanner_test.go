package workshop

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttscompanion/ttsc/internal/log"
	"github.com/ttscompanion/ttsc/internal/registry"
)

type fixture struct {
	root  string
	store *registry.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	files := registry.NewFiles(filepath.Join(dir, "cache"), log.NewNop())
	store, err := registry.NewStore(filepath.Join(dir, "registry.json"), files, log.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	root := filepath.Join(dir, "tts")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Mods", "Workshop"), 0o750))
	return &fixture{root: root, store: store}
}

func (f *fixture) writeManifest(t *testing.T, entries []map[string]string) {
	t.Helper()
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	path := filepath.Join(f.root, "Mods", "Workshop", "WorkshopFileInfos.json")
	require.NoError(t, os.WriteFile(path, data, 0o640))
}

func (f *fixture) writeSave(t *testing.T, name string, doc map[string]any) string {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(f.root, "Mods", "Workshop", name)
	require.NoError(t, os.WriteFile(path, data, 0o640))
	return path
}

func pdfObject(url string) map[string]any {
	return map[string]any{
		"Name":      "Custom_PDF",
		"CustomPDF": map[string]any{"PDFUrl": url},
	}
}

func TestScanAllMissingManifest(t *testing.T) {
	f := newFixture(t)

	scanner := New(f.root, f.store, log.NewNop())
	_, err := scanner.ScanAll(context.Background())
	assert.ErrorIs(t, err, ErrNoManifest)
	assert.Empty(t, f.store.Games())
}

func TestScanAllRegistersPDFReferences(t *testing.T) {
	f := newFixture(t)
	save := f.writeSave(t, "chess.json", map[string]any{
		"SaveName": "Chess Deluxe",
		"ObjectStates": []any{
			pdfObject("https://host/files/basic_rules.pdf"),
			map[string]any{
				"Name": "Bag",
				"ContainedObjects": []any{
					pdfObject("https://host/files/advanced_rules.pdf?dl=1"),
				},
			},
		},
	})
	f.writeManifest(t, []map[string]string{{"Name": "Chess Deluxe", "Directory": save}})

	scanner := New(f.root, f.store, log.NewNop())
	sum, err := scanner.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Games: 1, References: 2}, sum)

	list := f.store.ListRulebooks("Chess Deluxe")
	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].ID)
	assert.Equal(t, "2", list[1].ID)
	assert.Equal(t, "https://host/files/basic_rules.pdf", list[0].OriginalSource)
	assert.Equal(t, "https://host/files/advanced_rules.pdf?dl=1", list[1].OriginalSource)
}

func TestScanAllFindsRefsInStatesAndNotebook(t *testing.T) {
	f := newFixture(t)
	save := f.writeSave(t, "manor.json", map[string]any{
		"SaveName": "Manor",
		"ObjectStates": []any{
			map[string]any{
				"Name": "Tile",
				"States": map[string]any{
					"2": pdfObject("https://host/manor_rules.pdf"),
				},
			},
		},
		"TabStates": map[string]any{
			"0": map[string]any{
				"title": "Rules",
				"body":  "Full rules at https://host/manor_appendix.pdf and FAQ at https://host/faq.html",
			},
		},
	})
	f.writeManifest(t, []map[string]string{{"Name": "Manor", "Directory": save}})

	scanner := New(f.root, f.store, log.NewNop())
	sum, err := scanner.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.References)

	list := f.store.ListRulebooks("Manor")
	require.Len(t, list, 2)
	// The .html link is not a rulebook reference.
	for _, rb := range list {
		assert.NotContains(t, rb.OriginalSource, "faq")
	}
}

func TestScanAllReadsLegacyNotebook(t *testing.T) {
	f := newFixture(t)
	save := f.writeSave(t, "legacy.json", map[string]any{
		"SaveName": "Legacy Game",
		"Notebook": []any{
			map[string]any{
				"Title":   "Rules",
				"Content": "Rulebook: https://host/legacy_rules.pdf",
			},
		},
	})
	f.writeManifest(t, []map[string]string{{"Name": "Legacy Game", "Directory": save}})

	scanner := New(f.root, f.store, log.NewNop())
	sum, err := scanner.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Games: 1, References: 1}, sum)

	list := f.store.ListRulebooks("Legacy Game")
	require.Len(t, list, 1)
	assert.Equal(t, "https://host/legacy_rules.pdf", list[0].OriginalSource)
}

func TestScanAllDefaultsGamesWithoutPDFs(t *testing.T) {
	f := newFixture(t)
	save := f.writeSave(t, "plain.json", map[string]any{
		"SaveName":     "Plain Game",
		"ObjectStates": []any{map[string]any{"Name": "Token"}},
	})
	f.writeManifest(t, []map[string]string{{"Name": "Plain Game", "Directory": save}})

	scanner := New(f.root, f.store, log.NewNop())
	_, err := scanner.ScanAll(context.Background())
	require.NoError(t, err)

	list := f.store.ListRulebooks("Plain Game")
	require.Len(t, list, 1)
	assert.Empty(t, list[0].OriginalSource)
}

func TestScanAllResolvesDirectoryEntries(t *testing.T) {
	f := newFixture(t)
	modDir := filepath.Join(f.root, "Mods", "Workshop", "123456")
	require.NoError(t, os.MkdirAll(modDir, 0o750))
	doc, err := json.Marshal(map[string]any{
		"SaveName":     "Nested Game",
		"ObjectStates": []any{pdfObject("https://host/nested.pdf")},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(modDir, "123456.json"), doc, 0o640))

	f.writeManifest(t, []map[string]string{{"Name": "Nested Game", "Directory": modDir}})

	scanner := New(f.root, f.store, log.NewNop())
	sum, err := scanner.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Games: 1, References: 1}, sum)
}

func TestScanAllSkipsMalformedSaves(t *testing.T) {
	f := newFixture(t)
	broken := filepath.Join(f.root, "Mods", "Workshop", "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{nope"), 0o640))
	good := f.writeSave(t, "good.json", map[string]any{
		"SaveName":     "Good Game",
		"ObjectStates": []any{pdfObject("https://host/good.pdf")},
	})
	f.writeManifest(t, []map[string]string{
		{"Name": "Broken Game", "Directory": broken},
		{"Name": "Good Game", "Directory": good},
	})

	scanner := New(f.root, f.store, log.NewNop())
	sum, err := scanner.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Games: 1, References: 1}, sum)
	assert.False(t, f.store.HasGame("Broken Game"))
}

func TestScanAllIdempotent(t *testing.T) {
	f := newFixture(t)
	save := f.writeSave(t, "chess.json", map[string]any{
		"SaveName": "Chess",
		"ObjectStates": []any{
			pdfObject("https://host/a.pdf"),
			pdfObject("https://host/b.pdf"),
		},
	})
	f.writeManifest(t, []map[string]string{{"Name": "Chess", "Directory": save}})

	scanner := New(f.root, f.store, log.NewNop())
	_, err := scanner.ScanAll(context.Background())
	require.NoError(t, err)
	first := f.store.ListRulebooks("Chess")

	_, err = scanner.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, f.store.ListRulebooks("Chess"))
}

func TestScanAllFallsBackToManifestName(t *testing.T) {
	f := newFixture(t)
	save := f.writeSave(t, "unnamed.json", map[string]any{
		"ObjectStates": []any{pdfObject("https://host/rules.pdf")},
	})
	f.writeManifest(t, []map[string]string{{"Name": "Manifest Name", "Directory": save}})

	scanner := New(f.root, f.store, log.NewNop())
	_, err := scanner.ScanAll(context.Background())
	require.NoError(t, err)
	assert.True(t, f.store.HasGame("Manifest Name"))
}

func TestIsPDFRef(t *testing.T) {
	assert.True(t, isPDFRef("https://host/rules.pdf"))
	assert.True(t, isPDFRef("https://host/RULES.PDF?download=1"))
	assert.True(t, isPDFRef("https://host/rules.pdf#page=3"))
	assert.False(t, isPDFRef("https://host/rules.html"))
	assert.False(t, isPDFRef(""))
	assert.False(t, isPDFRef("https://host/pdf"))
}
