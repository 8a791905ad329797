package models

import (
	"fmt"
	"time"
)

// Kind identifies the entity type of a favorite item.
type Kind string

const (
	KindTrack  Kind = "track"
	KindAlbum  Kind = "album"
	KindArtist Kind = "artist"
)

// Kinds returns all entity kinds in processing order.
func Kinds() []Kind {
	return []Kind{KindTrack, KindAlbum, KindArtist}
}

// ParseKind converts a string into a Kind, accepting singular and plural forms.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "track", "tracks":
		return KindTrack, nil
	case "album", "albums":
		return KindAlbum, nil
	case "artist", "artists":
		return KindArtist, nil
	}
	return "", fmt.Errorf("unknown kind: %q", s)
}

// Plural returns the provider-facing plural form used by the favorites API.
func (k Kind) Plural() string {
	return string(k) + "s"
}

// FavoriteItem represents one favorited item from the provider's catalog.
// The ID is the provider-assigned stable identifier; title/artist/album are
// display metadata used for logging and path formatting only.
type FavoriteItem struct {
	ID     string
	Kind   Kind
	Title  string
	Artist string
	Album  string
}

// Validate checks that the item carries the fields the pipeline depends on.
func (f FavoriteItem) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("favorite item missing identifier")
	}
	if _, err := ParseKind(string(f.Kind)); err != nil {
		return err
	}
	return nil
}

// String renders the item for log lines.
func (f FavoriteItem) String() string {
	if f.Artist != "" && f.Title != "" {
		return fmt.Sprintf("%s (%s - %s)", f.ID, f.Artist, f.Title)
	}
	if f.Title != "" {
		return fmt.Sprintf("%s (%s)", f.ID, f.Title)
	}
	return f.ID
}

// Outcome is the terminal result recorded for an item in the ledger.
type Outcome string

const (
	OutcomeSucceeded       Outcome = "succeeded"
	OutcomeFailedPermanent Outcome = "failed-permanent"
)

// LedgerEntry is the persisted record of a handled item, keyed by item ID.
type LedgerEntry struct {
	ItemID     string
	Kind       Kind
	Outcome    Outcome
	Attempts   int
	RecordedAt time.Time
	UpdatedAt  time.Time
}

// Validate checks ledger entry invariants before persistence.
func (e LedgerEntry) Validate() error {
	if e.ItemID == "" {
		return fmt.Errorf("ledger entry missing item identifier")
	}
	if _, err := ParseKind(string(e.Kind)); err != nil {
		return err
	}
	if e.Outcome != OutcomeSucceeded && e.Outcome != OutcomeFailedPermanent {
		return fmt.Errorf("invalid outcome: %q", e.Outcome)
	}
	if e.Attempts < 1 {
		return fmt.Errorf("attempts must be at least 1, got %d", e.Attempts)
	}
	return nil
}

// KindStats holds per-kind counters for one reconciliation cycle.
type KindStats struct {
	Pending   int `json:"pending"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// CycleStats is the accounting for one reconciliation-and-download cycle.
// Owned by the scheduler; exposed read-only through the status reporter.
type CycleStats struct {
	ID             string             `json:"id"`
	StartedAt      time.Time          `json:"started_at"`
	FinishedAt     time.Time          `json:"finished_at"`
	PerKind        map[Kind]KindStats `json:"per_kind"`
	FavoritesCount map[Kind]int       `json:"favorites_count"`
	Errors         []string           `json:"errors,omitempty"`
}

// NewCycleStats creates an empty CycleStats for a cycle starting now.
func NewCycleStats(id string, start time.Time) *CycleStats {
	stats := &CycleStats{
		ID:             id,
		StartedAt:      start,
		PerKind:        make(map[Kind]KindStats),
		FavoritesCount: make(map[Kind]int),
	}
	for _, kind := range Kinds() {
		stats.PerKind[kind] = KindStats{}
	}
	return stats
}

// Clone deep-copies the stats so a published snapshot is immune to further
// mutation by the cycle that owns the original.
func (s *CycleStats) Clone() *CycleStats {
	clone := *s
	clone.PerKind = make(map[Kind]KindStats, len(s.PerKind))
	for kind, ks := range s.PerKind {
		clone.PerKind[kind] = ks
	}
	clone.FavoritesCount = make(map[Kind]int, len(s.FavoritesCount))
	for kind, count := range s.FavoritesCount {
		clone.FavoritesCount[kind] = count
	}
	clone.Errors = append([]string(nil), s.Errors...)
	return &clone
}

// TotalSucceeded returns the number of successful downloads across all kinds.
func (s *CycleStats) TotalSucceeded() int {
	total := 0
	for _, ks := range s.PerKind {
		total += ks.Succeeded
	}
	return total
}

// TotalFailed returns the number of permanently failed downloads across all kinds.
func (s *CycleStats) TotalFailed() int {
	total := 0
	for _, ks := range s.PerKind {
		total += ks.Failed
	}
	return total
}

// ErrorText joins cycle errors into a single display string, empty when the cycle was clean.
func (s *CycleStats) ErrorText() string {
	if len(s.Errors) == 0 {
		return ""
	}
	text := s.Errors[0]
	for _, e := range s.Errors[1:] {
		text += "; " + e
	}
	return text
}
