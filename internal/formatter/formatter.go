// package formatter renders pipeline status and ledger summaries for CLI output
package formatter

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/seniordevguy/qobuz-favorites-downloader/internal/models"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/status"
)

// StatusToText renders a status snapshot as aligned plain text.
func StatusToText(snap status.Snapshot) []byte {
	var buf bytes.Buffer

	state := snap.CurrentStatus
	if snap.IsRunning {
		state += " (running)"
	}

	fmt.Fprintf(&buf, "Status:    %s\n", state)
	fmt.Fprintf(&buf, "Last run:  %s\n", snap.LastRun)
	fmt.Fprintf(&buf, "Next run:  %s\n", snap.NextRun)

	if snap.CurrentItem != "" {
		fmt.Fprintf(&buf, "Current:   %s\n", snap.CurrentItem)
	}

	if len(snap.FavoritesCount) > 0 {
		buf.WriteString("\nFavorites\n")
		keys := make([]string, 0, len(snap.FavoritesCount))
		for k := range snap.FavoritesCount {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&buf, "  %-8s %d\n", k, snap.FavoritesCount[k])
		}
	}

	buf.WriteString("\nTotals\n")
	fmt.Fprintf(&buf, "  tracks   %d downloaded, %d failed\n", snap.Stats.TracksDownloaded, snap.Stats.TracksFailed)
	fmt.Fprintf(&buf, "  albums   %d downloaded, %d failed\n", snap.Stats.AlbumsDownloaded, snap.Stats.AlbumsFailed)
	fmt.Fprintf(&buf, "  artists  %d downloaded, %d failed\n", snap.Stats.ArtistsDownloaded, snap.Stats.ArtistsFailed)

	if snap.Stats.LastError != "" {
		fmt.Fprintf(&buf, "\nLast error: %s\n", snap.Stats.LastError)
	}

	if snap.Cycle != nil {
		buf.WriteString("\nLast cycle\n")
		for _, kind := range models.Kinds() {
			ks := snap.Cycle.PerKind[kind]
			fmt.Fprintf(&buf, "  %-8s pending %d, succeeded %d, failed %d\n",
				kind.Plural(), ks.Pending, ks.Succeeded, ks.Failed)
		}
	}

	return buf.Bytes()
}

// LedgerSummary holds per-kind ledger counts for rendering.
type LedgerSummary struct {
	Handled map[models.Kind]int
	Failed  map[models.Kind]int
}

// LedgerToText renders ledger counts as aligned plain text.
func LedgerToText(summary LedgerSummary) []byte {
	var buf bytes.Buffer

	buf.WriteString("Ledger\n")
	total := 0
	for _, kind := range models.Kinds() {
		handled := summary.Handled[kind]
		failed := summary.Failed[kind]
		total += handled
		fmt.Fprintf(&buf, "  %-8s %d handled (%d failed permanently)\n", kind.Plural(), handled, failed)
	}
	fmt.Fprintf(&buf, "  total    %d\n", total)

	return buf.Bytes()
}

// EntryToText renders one ledger entry for CLI display.
func EntryToText(entry *models.LedgerEntry) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "ID:        %s\n", entry.ItemID)
	fmt.Fprintf(&buf, "Kind:      %s\n", entry.Kind)
	fmt.Fprintf(&buf, "Outcome:   %s\n", entry.Outcome)
	fmt.Fprintf(&buf, "Attempts:  %d\n", entry.Attempts)
	fmt.Fprintf(&buf, "Recorded:  %s\n", entry.RecordedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&buf, "Updated:   %s\n", entry.UpdatedAt.Format("2006-01-02 15:04:05"))

	return buf.Bytes()
}
