// Package workshop discovers rulebook references inside Tabletop
// Simulator workshop saves and feeds them into the rulebook registry.
package workshop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ttscompanion/ttsc/internal/registry"
)

// ErrNoManifest indicates the workshop manifest file is missing. Without
// it the scanner cannot tell which saves are installed, so a scan aborts
// with no side effects rather than guessing from directory listings.
var ErrNoManifest = errors.New("workshop manifest not found")

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>\\]+`)

// Summary reports what a full scan found.
type Summary struct {
	Games      int
	References int
}

// Scanner walks the Tabletop Simulator workshop manifest and registers
// every rulebook PDF reference it finds.
type Scanner struct {
	root     string
	registry *registry.Store
	logger   *slog.Logger
}

// New creates a scanner over the Tabletop Simulator data root, the
// directory holding Mods/Workshop.
func New(root string, store *registry.Store, logger *slog.Logger) *Scanner {
	return &Scanner{root: root, registry: store, logger: logger}
}

// ManifestPath returns the location of the workshop manifest.
func (s *Scanner) ManifestPath() string {
	return filepath.Join(s.root, "Mods", "Workshop", "WorkshopFileInfos.json")
}

// ScanAll reads the workshop manifest, extracts rulebook references from
// every listed save, and folds the results into the registry in one
// batch. Saves that cannot be read or parsed are logged and skipped;
// only a missing manifest is fatal. Rescans are idempotent.
func (s *Scanner) ScanAll(ctx context.Context) (Summary, error) {
	manifest := s.ManifestPath()
	data, err := os.ReadFile(manifest)
	if err != nil {
		if os.IsNotExist(err) {
			return Summary{}, fmt.Errorf("%w: %s", ErrNoManifest, manifest)
		}
		return Summary{}, fmt.Errorf("reading workshop manifest: %w", err)
	}

	var infos []manifestEntry
	if err := json.Unmarshal(data, &infos); err != nil {
		return Summary{}, fmt.Errorf("parsing workshop manifest %s: %w", manifest, err)
	}

	byGame := make(map[string]int)
	var results []registry.ScanResult
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}

		game, refs, err := s.scanEntry(info)
		if err != nil {
			s.logger.Warn("skipping workshop entry",
				"name", info.Name, "directory", info.Directory, "error", err)
			continue
		}
		if game == "" {
			s.logger.Warn("workshop entry has no usable name", "directory", info.Directory)
			continue
		}

		if idx, seen := byGame[game]; seen {
			results[idx].Refs = mergeRefs(results[idx].Refs, refs)
			continue
		}
		byGame[game] = len(results)
		results = append(results, registry.ScanResult{Game: game, Refs: refs})
	}

	if err := s.registry.ApplyScanResults(results); err != nil {
		return Summary{}, fmt.Errorf("applying scan results: %w", err)
	}

	sum := Summary{Games: len(results)}
	for _, res := range results {
		sum.References += len(res.Refs)
	}
	s.logger.Info("workshop scan complete",
		"games", sum.Games, "references", sum.References)
	return sum, nil
}

type manifestEntry struct {
	Name      string `json:"Name"`
	Directory string `json:"Directory"`
}

// scanEntry resolves one manifest entry to its save document and
// extracts the rulebook references inside it.
func (s *Scanner) scanEntry(info manifestEntry) (game string, refs []string, err error) {
	savePath, err := resolveSavePath(info.Directory)
	if err != nil {
		return "", nil, err
	}

	data, err := os.ReadFile(savePath)
	if err != nil {
		return "", nil, fmt.Errorf("reading save: %w", err)
	}

	var doc saveDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", nil, fmt.Errorf("parsing save %s: %w", savePath, err)
	}

	game = strings.TrimSpace(doc.SaveName)
	if game == "" {
		game = strings.TrimSpace(info.Name)
	}
	return game, doc.rulebookRefs(), nil
}

// resolveSavePath accepts either a direct path to a save document or a
// directory expected to contain "<base>.json" named after itself.
func resolveSavePath(location string) (string, error) {
	fi, err := os.Stat(location)
	if err != nil {
		return "", fmt.Errorf("locating save: %w", err)
	}
	if !fi.IsDir() {
		if !strings.EqualFold(filepath.Ext(location), ".json") {
			return "", fmt.Errorf("save location %s is not a JSON document", location)
		}
		return location, nil
	}

	candidate := filepath.Join(location, filepath.Base(location)+".json")
	if _, err := os.Stat(candidate); err != nil {
		return "", fmt.Errorf("locating save in directory: %w", err)
	}
	return candidate, nil
}

type saveDocument struct {
	SaveName     string              `json:"SaveName"`
	ObjectStates []objectState       `json:"ObjectStates"`
	TabStates    map[string]tabState `json:"TabStates"`
	Notebook     []notebookTab       `json:"Notebook"`
}

type objectState struct {
	Name             string                 `json:"Name"`
	CustomPDF        *customPDF             `json:"CustomPDF"`
	ContainedObjects []objectState          `json:"ContainedObjects"`
	States           map[string]objectState `json:"States"`
}

type customPDF struct {
	PDFUrl string `json:"PDFUrl"`
}

type tabState struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// notebookTab is the notebook shape carried by older saves, a flat tab
// list instead of the TabStates map.
type notebookTab struct {
	Title   string `json:"Title"`
	Content string `json:"Content"`
}

// rulebookRefs collects PDF references from the save's object tree and
// notebook tabs, deduplicated in discovery order.
func (d *saveDocument) rulebookRefs() []string {
	var refs []string
	seen := make(map[string]struct{})
	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if !isPDFRef(ref) {
			return
		}
		if _, dup := seen[ref]; dup {
			return
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}

	var walk func(objects []objectState)
	walk = func(objects []objectState) {
		for _, obj := range objects {
			if obj.CustomPDF != nil {
				add(obj.CustomPDF.PDFUrl)
			}
			walk(obj.ContainedObjects)
			for _, alt := range obj.States {
				walk([]objectState{alt})
			}
		}
	}
	walk(d.ObjectStates)

	// Tab keys are iterated in sorted order so rescans discover
	// references in a stable order.
	tabKeys := make([]string, 0, len(d.TabStates))
	for key := range d.TabStates {
		tabKeys = append(tabKeys, key)
	}
	sort.Strings(tabKeys)
	for _, key := range tabKeys {
		for _, match := range urlPattern.FindAllString(d.TabStates[key].Body, -1) {
			add(strings.TrimRight(match, ".,;)"))
		}
	}

	for _, tab := range d.Notebook {
		for _, match := range urlPattern.FindAllString(tab.Content, -1) {
			add(strings.TrimRight(match, ".,;)"))
		}
	}
	return refs
}

// isPDFRef reports whether ref points at a PDF once query and fragment
// decoration is stripped.
func isPDFRef(ref string) bool {
	if ref == "" {
		return false
	}
	if i := strings.IndexByte(ref, '#'); i >= 0 {
		ref = ref[:i]
	}
	if i := strings.IndexByte(ref, '?'); i >= 0 {
		ref = ref[:i]
	}
	return strings.HasSuffix(strings.ToLower(ref), ".pdf")
}

func mergeRefs(dst, extra []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, r := range dst {
		seen[r] = struct{}{}
	}
	for _, r := range extra {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		dst = append(dst, r)
	}
	return dst
}
