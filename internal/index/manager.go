// Package index maintains the per-game retrieval indexes: rulebook text
// split into overlapping chunks, embedded, and persisted in an embedded
// vector store under one directory per game.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/firebase/genkit/go/ai"
	chromem "github.com/philippgille/chromem-go"

	"github.com/ttscompanion/ttsc/internal/slug"
)

var (
	// ErrNoIndex indicates the game has no retrieval index yet, neither
	// in memory nor on disk. Callers treat this as "rulebook not
	// processed", not as a failure.
	ErrNoIndex = errors.New("no retrieval index for game")

	// ErrEmptyText indicates the rulebook file holds no indexable text.
	ErrEmptyText = errors.New("rulebook text is empty")
)

// collectionName is the single chromem collection inside each per-game
// store.
const collectionName = "rulebook"

// Manager owns the per-game vector stores. Collection handles are cached
// after the first build or load; the on-disk store under
// <root>/<slug(game)> survives restarts.
type Manager struct {
	mu           sync.Mutex
	root         string
	embedFunc    chromem.EmbeddingFunc
	chunkSize    int
	chunkOverlap int
	logger       *slog.Logger
	handles      map[string]*chromem.Collection
}

// NewManager creates a manager persisting indexes under root, embedding
// with the given Genkit embedder.
func NewManager(root string, embedder ai.Embedder, chunkSize, chunkOverlap int, logger *slog.Logger) *Manager {
	return &Manager{
		root:         root,
		embedFunc:    NewEmbeddingFunc(embedder),
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
		handles:      make(map[string]*chromem.Collection),
	}
}

// dir returns the game's on-disk store location.
func (m *Manager) dir(game string) string {
	return filepath.Join(m.root, slug.Slugify(game))
}

// BuildFromText replaces the game's index with one built from the text
// file at path. The new store is built beside the old one and swapped in
// whole, so stale chunks from an earlier rulebook revision cannot
// survive a rebuild and other games stay queryable while this one
// embeds.
func (m *Manager) BuildFromText(ctx context.Context, game, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading rulebook text: %w", err)
	}

	chunks := Split(string(data), m.chunkSize, m.chunkOverlap)
	if len(chunks) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyText, path)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:      strconv.Itoa(i),
			Content: chunk,
		}
	}

	// Embedding every chunk can take seconds and may hit the network.
	// Build into a scratch directory without holding the manager lock so
	// queries for already-loaded games keep flowing, then swap the
	// finished store into place.
	if err := os.MkdirAll(m.root, 0o750); err != nil {
		return fmt.Errorf("creating index root: %w", err)
	}
	scratch, err := os.MkdirTemp(m.root, ".build-")
	if err != nil {
		return fmt.Errorf("creating index scratch directory: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(scratch)
	}()

	db, err := chromem.NewPersistentDB(scratch, false)
	if err != nil {
		return fmt.Errorf("creating index store for %q: %w", game, err)
	}
	col, err := db.GetOrCreateCollection(collectionName, nil, m.embedFunc)
	if err != nil {
		return fmt.Errorf("creating index collection for %q: %w", game, err)
	}
	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("embedding rulebook chunks for %q: %w", game, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dir := m.dir(game)
	delete(m.handles, game)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clearing old index for %q: %w", game, err)
	}
	if err := os.Rename(scratch, dir); err != nil {
		return fmt.Errorf("moving index into place for %q: %w", game, err)
	}

	// The scratch handle still persists to the old location; reopen the
	// store at its final path and cache that handle instead.
	if _, err := m.getOrLoadLocked(game); err != nil {
		return fmt.Errorf("reopening rebuilt index for %q: %w", game, err)
	}

	m.logger.Info("built retrieval index",
		"game", game, "chunks", len(chunks), "dir", dir)
	return nil
}

// GetOrLoad returns the game's collection handle, loading the persisted
// store on first access. ErrNoIndex when nothing was ever built.
func (m *Manager) GetOrLoad(game string) (*chromem.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrLoadLocked(game)
}

func (m *Manager) getOrLoadLocked(game string) (*chromem.Collection, error) {
	if col, ok := m.handles[game]; ok {
		return col, nil
	}

	dir := m.dir(game)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", ErrNoIndex, game)
		}
		return nil, fmt.Errorf("checking index store for %q: %w", game, err)
	}

	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("loading index store for %q: %w", game, err)
	}
	col := db.GetCollection(collectionName, m.embedFunc)
	if col == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoIndex, game)
	}

	m.handles[game] = col
	m.logger.Debug("loaded retrieval index from disk", "game", game, "dir", dir)
	return col, nil
}

// Ready reports whether the game has an index available for querying.
func (m *Manager) Ready(game string) bool {
	_, err := m.GetOrLoad(game)
	return err == nil
}

// Query returns the content of the k chunks most similar to the
// question. k is clamped to the collection size; chromem rejects
// requests for more results than it holds.
func (m *Manager) Query(ctx context.Context, game, question string, k int) ([]string, error) {
	col, err := m.GetOrLoad(game)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoIndex, game)
	}
	if k > count {
		k = count
	}
	if k <= 0 {
		k = 1
	}

	results, err := col.Query(ctx, question, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying index for %q: %w", game, err)
	}

	chunks := make([]string, len(results))
	for i, res := range results {
		chunks[i] = res.Content
	}
	return chunks, nil
}

// Invalidate drops the game's cached handle and deletes its persisted
// store. Deletion failures are logged, not raised: the handle is already
// gone and a later rebuild removes the directory anyway.
func (m *Manager) Invalidate(game string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.handles, game)
	dir := m.dir(game)
	if err := os.RemoveAll(dir); err != nil {
		m.logger.Warn("failed to delete index store", "game", game, "dir", dir, "error", err)
		return
	}
	m.logger.Info("invalidated retrieval index", "game", game, "dir", dir)
}
