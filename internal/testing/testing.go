// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/seniordevguy/qobuz-favorites-downloader/internal/models"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/services"
)

// MockService is a configurable test double for [services.Service].
// Callable fields override the default no-op behavior.
type MockService struct {
	AuthenticateFunc  func(ctx context.Context) error
	ListFavoritesFunc func(ctx context.Context, kind models.Kind) ([]models.FavoriteItem, error)
	FetchArtifactFunc func(ctx context.Context, item models.FavoriteItem, quality int) (*services.ArtifactResult, error)

	mu      sync.Mutex
	fetched []string
}

func (m *MockService) Authenticate(ctx context.Context) error {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx)
	}
	return nil
}

func (m *MockService) ListFavorites(ctx context.Context, kind models.Kind) ([]models.FavoriteItem, error) {
	if m.ListFavoritesFunc != nil {
		return m.ListFavoritesFunc(ctx, kind)
	}
	return nil, nil
}

func (m *MockService) FetchArtifact(ctx context.Context, item models.FavoriteItem, quality int) (*services.ArtifactResult, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, item.ID)
	m.mu.Unlock()

	if m.FetchArtifactFunc != nil {
		return m.FetchArtifactFunc(ctx, item, quality)
	}
	return &services.ArtifactResult{Files: 1}, nil
}

func (m *MockService) Name() string { return "mock" }

// Fetched returns the item ids passed to FetchArtifact, in call order.
func (m *MockService) Fetched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fetched...)
}

// MockRecorder is an in-memory test double for the pool's ledger slice.
type MockRecorder struct {
	RecordFunc func(ctx context.Context, entry models.LedgerEntry) error

	mu      sync.Mutex
	entries map[string]models.LedgerEntry
}

func (m *MockRecorder) Record(ctx context.Context, entry models.LedgerEntry) error {
	if m.RecordFunc != nil {
		if err := m.RecordFunc(ctx, entry); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string]models.LedgerEntry)
	}
	m.entries[entry.ItemID] = entry
	return nil
}

// Entry returns the recorded entry for an id, if any.
func (m *MockRecorder) Entry(itemID string) (models.LedgerEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[itemID]
	return entry, ok
}

// Len returns the number of recorded entries.
func (m *MockRecorder) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// Items builds n favorite items of a kind with sequential ids.
func Items(kind models.Kind, ids ...string) []models.FavoriteItem {
	items := make([]models.FavoriteItem, len(ids))
	for i, id := range ids {
		items[i] = models.FavoriteItem{ID: id, Kind: kind, Title: "title-" + id, Artist: "artist-" + id}
	}
	return items
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}
