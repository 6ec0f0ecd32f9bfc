// Package registry tracks the rulebooks known for each game: where their
// editable text lives on disk, where the text originally came from, and
// whether it has been indexed for retrieval. State is one JSON document
// persisted after every mutation.
package registry

// Status describes the lifecycle of a rulebook entry.
type Status string

const (
	// StatusAwaitingContent means the placeholder file exists but no one
	// has pasted rulebook text into it yet.
	StatusAwaitingContent Status = "awaiting_user_content"

	// StatusProcessed means the text has been chunked and embedded into
	// the game's retrieval index.
	StatusProcessed Status = "processed_into_rag"
)

// Entry is one rulebook record inside a game.
type Entry struct {
	// OriginalSource is the reference the entry was discovered from,
	// usually a PDF URL found in a workshop save. Synthesized default
	// entries carry an empty source.
	OriginalSource string `json:"original_source"`

	// NormalizedFilename is the deterministic on-disk name of the
	// editable text file.
	NormalizedFilename string `json:"normalized_filename"`

	// EditableTextPath is the absolute path of the editable text file.
	EditableTextPath string `json:"editable_text_path"`

	Status Status `json:"status"`

	// DisplayID is the stable human-facing ordinal ("1", "2", ...).
	// Assigned at insertion, never reassigned.
	DisplayID string `json:"display_id"`
}

// Game groups the rulebook entries of one game. Map keys are identifier
// keys: the verbatim source reference, or "default_for_<slug>" for the
// synthesized fallback entry.
type Game struct {
	DisplayName string           `json:"display_name"`
	Rulebooks   map[string]Entry `json:"rulebooks"`
}

// Rulebook is one row of a user-facing listing.
type Rulebook struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Status         Status `json:"status"`
	Path           string `json:"path"`
	OriginalSource string `json:"original_source"`
}

// ScanResult is the outcome of scanning one game's workshop save.
type ScanResult struct {
	Game string

	// Refs are the rulebook source references discovered in the save.
	// Empty means the scan found nothing and the game may need a
	// default entry.
	Refs []string
}
