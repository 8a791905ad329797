// package status holds the process-wide observable pipeline state.
//
// The scheduler updates the phase at cycle boundaries and the worker pools
// feed live counters; the dashboard and CLI read concurrent snapshots. Reads
// copy the state out under a short critical section so the dashboard can
// never stall the pipeline.
package status

import (
	"sync"
	"time"

	"github.com/seniordevguy/qobuz-favorites-downloader/internal/models"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/shared"
)

// Phase names the pipeline's current activity, mirrored on the dashboard.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseInitializing Phase = "initializing"
	PhaseFetching     Phase = "fetching favorites"
	PhaseDownloading  Phase = "downloading"
	PhaseError        Phase = "error"
)

// DownloadingPhase names the download phase for one kind, e.g.
// "downloading tracks".
func DownloadingPhase(kind models.Kind) Phase {
	return Phase("downloading " + kind.Plural())
}

// Totals are the cumulative per-kind outcome counters across all cycles of
// this process's lifetime.
type Totals struct {
	TracksDownloaded  int    `json:"tracks_downloaded"`
	AlbumsDownloaded  int    `json:"albums_downloaded"`
	ArtistsDownloaded int    `json:"artists_downloaded"`
	TracksFailed      int    `json:"tracks_failed"`
	AlbumsFailed      int    `json:"albums_failed"`
	ArtistsFailed     int    `json:"artists_failed"`
	LastError         string `json:"last_error,omitempty"`
}

// Snapshot is a point-in-time copy of the pipeline state, safe to serialize
// while the pipeline keeps moving.
type Snapshot struct {
	IsRunning        bool               `json:"is_running"`
	CurrentStatus    string             `json:"current_status"`
	CurrentItem      string             `json:"current_item,omitempty"`
	LastRun          string             `json:"last_run"`
	LastRunTimestamp int64              `json:"last_run_timestamp,omitempty"`
	NextRun          string             `json:"next_run"`
	NextRunTimestamp int64              `json:"next_run_timestamp,omitempty"`
	Stats            Totals             `json:"stats"`
	FavoritesCount   map[string]int     `json:"favorites_count"`
	Cycle            *models.CycleStats `json:"cycle,omitempty"`
}

// Reporter owns the mutable pipeline state. The zero value is not usable;
// construct with New, which starts in the never-run state.
type Reporter struct {
	mu             sync.Mutex
	phase          Phase
	running        bool
	currentItem    string
	lastRun        time.Time
	nextRun        time.Time
	totals         Totals
	favoritesCount map[models.Kind]int
	cycle          *models.CycleStats
}

// New creates a Reporter in the neutral never-run state.
func New() *Reporter {
	return &Reporter{
		phase:          PhaseIdle,
		favoritesCount: make(map[models.Kind]int),
	}
}

// SetPhase updates the pipeline phase.
func (r *Reporter) SetPhase(phase Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = phase
}

// CycleStarted marks a cycle as running and resets per-cycle display state.
func (r *Reporter) CycleStarted(stats *models.CycleStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = true
	r.phase = PhaseInitializing
	r.currentItem = ""
	r.cycle = stats.Clone()
}

// PublishCycle refreshes the published copy of the running cycle's stats, at
// phase boundaries within the cycle.
func (r *Reporter) PublishCycle(stats *models.CycleStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycle = stats.Clone()
}

// CycleFinished records a completed cycle and the next scheduled run.
func (r *Reporter) CycleFinished(stats *models.CycleStats, nextRun time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
	r.currentItem = ""
	r.lastRun = stats.FinishedAt
	r.nextRun = nextRun
	r.cycle = stats.Clone()

	if text := stats.ErrorText(); text != "" {
		r.phase = PhaseError
		r.totals.LastError = text
	} else {
		r.phase = PhaseIdle
		r.totals.LastError = ""
	}
}

// SetNextRun publishes the next scheduled cycle time while idle.
func (r *Reporter) SetNextRun(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextRun = t
}

// SetFavoritesCount publishes the size of the current favorites listing.
func (r *Reporter) SetFavoritesCount(kind models.Kind, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.favoritesCount[kind] = count
}

// SetCurrentItem publishes the most recently dispatched item for display.
func (r *Reporter) SetCurrentItem(item string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentItem = item
}

// AddOutcomes feeds one pool run's outcome counts into the running totals.
func (r *Reporter) AddOutcomes(kind models.Kind, succeeded, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch kind {
	case models.KindTrack:
		r.totals.TracksDownloaded += succeeded
		r.totals.TracksFailed += failed
	case models.KindAlbum:
		r.totals.AlbumsDownloaded += succeeded
		r.totals.AlbumsFailed += failed
	case models.KindArtist:
		r.totals.ArtistsDownloaded += succeeded
		r.totals.ArtistsFailed += failed
	}
}

// SetLastError publishes an error outside the cycle accounting, e.g. a
// scheduler-level failure.
func (r *Reporter) SetLastError(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totals.LastError = text
	r.phase = PhaseError
}

// IsRunning reports whether a cycle is currently executing.
func (r *Reporter) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Snapshot copies the current state out for serialization.
func (r *Reporter) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		IsRunning:      r.running,
		CurrentStatus:  string(r.phase),
		CurrentItem:    r.currentItem,
		LastRun:        shared.FormatTimestamp(r.lastRun),
		NextRun:        shared.FormatTimestamp(r.nextRun),
		Stats:          r.totals,
		FavoritesCount: make(map[string]int, len(r.favoritesCount)),
	}

	if !r.lastRun.IsZero() {
		snap.LastRunTimestamp = r.lastRun.Unix()
	}
	if !r.nextRun.IsZero() {
		snap.NextRunTimestamp = r.nextRun.Unix()
	}
	for kind, count := range r.favoritesCount {
		snap.FavoritesCount[kind.Plural()] = count
	}
	if r.cycle != nil {
		snap.Cycle = r.cycle.Clone()
	}

	return snap
}
